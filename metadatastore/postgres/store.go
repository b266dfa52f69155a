// Package postgres implements metadatastore.Store on PostgreSQL, ported
// from the metadata store adapter's connection-pool and query-constant
// conventions.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/metadatastore"
)

// Store implements metadatastore.Store using PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens a PostgreSQL metadata store and verifies connectivity.
func New(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context, definitionID string) ([]*metadatastore.DatasetMetadata, error) {
	rows, err := s.db.QueryContext(ctx, _SQL_LIST_BY_DEFINITION, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset metadata: %w", err)
	}
	defer rows.Close()

	var records []*metadatastore.DatasetMetadata
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dataset metadata rows: %w", err)
	}
	return records, nil
}

func (s *Store) Upsert(ctx context.Context, record *metadatastore.DatasetMetadata) error {
	stacktrace, err := json.Marshal(record.Stacktrace)
	if err != nil {
		return fmt.Errorf("failed to encode stacktrace: %w", err)
	}

	extracted := record.ExtractedMetadata
	if extracted == nil {
		extracted = json.RawMessage("null")
	}

	_, err = s.db.ExecContext(ctx, _SQL_UPSERT_DATASET_METADATA,
		record.Key(),
		record.DefinitionID,
		record.DatasetID,
		record.FileURI,
		record.Checksum,
		string(record.Status),
		record.LastModifiedMs,
		record.LastDownloadedMs,
		record.ErrorMessage,
		string(stacktrace),
		[]byte(extracted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert dataset metadata: %w", err)
	}

	s.logger.Debug("dataset metadata upserted",
		zap.String("key", record.Key()),
		zap.String("status", string(record.Status)))
	return nil
}

func (s *Store) Delete(ctx context.Context, primaryKey string) error {
	_, err := s.db.ExecContext(ctx, _SQL_DELETE_DATASET_METADATA, primaryKey)
	if err != nil {
		return fmt.Errorf("failed to delete dataset metadata: %w", err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (*metadatastore.DatasetMetadata, error) {
	var rec metadatastore.DatasetMetadata
	var status, stacktrace string
	var extracted []byte

	err := rows.Scan(
		&rec.PrimaryKey,
		&rec.DefinitionID,
		&rec.DatasetID,
		&rec.FileURI,
		&rec.Checksum,
		&status,
		&rec.LastModifiedMs,
		&rec.LastDownloadedMs,
		&rec.ErrorMessage,
		&stacktrace,
		&extracted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset metadata row: %w", err)
	}

	rec.Status = metadatastore.Status(status)
	if stacktrace != "" {
		if err := json.Unmarshal([]byte(stacktrace), &rec.Stacktrace); err != nil {
			return nil, fmt.Errorf("failed to decode stacktrace: %w", err)
		}
	}
	if len(extracted) > 0 {
		rec.ExtractedMetadata = json.RawMessage(extracted)
	}

	return &rec, nil
}
