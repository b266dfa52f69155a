package postgres

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// RunMigrations applies the dataset_metadata schema, ported from the
// teacher's metadata/schema.RunMigrations: locate the migrations
// directory relative to this source file and drive golang-migrate's file
// source against the target DSN.
func RunMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("metadatastore/postgres: open for migration: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("metadatastore/postgres: ping for migration: %w", err)
	}

	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("metadatastore/postgres: failed to resolve migrations directory")
	}
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "migrations")

	sourceURL := fmt.Sprintf("file://%s", migrationsDir)
	source, err := (&file.File{}).Open(sourceURL)
	if err != nil {
		return fmt.Errorf("metadatastore/postgres: open migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("metadatastore/postgres: create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("file", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("metadatastore/postgres: create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("metadatastore/postgres: apply migrations: %w", err)
	}
	return nil
}
