// Package sqlite implements metadatastore.Store on SQLite, ported from
// the teacher's metadata/sqlite adapter's WAL-mode DSN and schema-on-open
// style. It is the default store for local development and for the test
// suite, since it needs no external database (spec.md §8).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/metadatastore"
)

// Store implements metadatastore.Store on a local SQLite database file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (creating if necessary) a SQLite-backed Store at dbPath.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("metadatastore/sqlite: open %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("metadatastore/sqlite: ping %s: %w", dbPath, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS dataset_metadata (
	primary_key         TEXT PRIMARY KEY,
	definition_id        TEXT NOT NULL,
	dataset_id           TEXT NOT NULL,
	file_uri             TEXT NOT NULL,
	checksum             TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	last_modified_ms     INTEGER NOT NULL DEFAULT 0,
	last_downloaded_ms   INTEGER NOT NULL DEFAULT 0,
	error_message        TEXT NOT NULL DEFAULT '',
	stacktrace           TEXT NOT NULL DEFAULT '[]',
	extracted_metadata   TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_dataset_metadata_definition ON dataset_metadata(definition_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("metadatastore/sqlite: init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context, definitionID string) ([]*metadatastore.DatasetMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT primary_key, definition_id, dataset_id, file_uri, checksum, status,
		       last_modified_ms, last_downloaded_ms, error_message,
		       stacktrace, extracted_metadata
		FROM dataset_metadata
		WHERE definition_id = ?`, definitionID)
	if err != nil {
		return nil, fmt.Errorf("metadatastore/sqlite: list %s: %w", definitionID, err)
	}
	defer rows.Close()

	var out []*metadatastore.DatasetMetadata
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadatastore/sqlite: iterate rows: %w", err)
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, record *metadatastore.DatasetMetadata) error {
	stacktrace, err := json.Marshal(record.Stacktrace)
	if err != nil {
		return fmt.Errorf("metadatastore/sqlite: encode stacktrace: %w", err)
	}
	extracted := record.ExtractedMetadata
	if len(extracted) == 0 {
		extracted = json.RawMessage("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dataset_metadata
			(primary_key, definition_id, dataset_id, file_uri, checksum, status,
			 last_modified_ms, last_downloaded_ms, error_message, stacktrace, extracted_metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(primary_key) DO UPDATE SET
			file_uri           = excluded.file_uri,
			checksum           = excluded.checksum,
			status             = excluded.status,
			last_modified_ms   = excluded.last_modified_ms,
			last_downloaded_ms = excluded.last_downloaded_ms,
			error_message      = excluded.error_message,
			stacktrace         = excluded.stacktrace,
			extracted_metadata = excluded.extracted_metadata`,
		record.Key(), record.DefinitionID, record.DatasetID, record.FileURI, record.Checksum,
		string(record.Status), record.LastModifiedMs, record.LastDownloadedMs,
		record.ErrorMessage, string(stacktrace), string(extracted),
	)
	if err != nil {
		return fmt.Errorf("metadatastore/sqlite: upsert %s: %w", record.Key(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, primaryKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dataset_metadata WHERE primary_key = ?`, primaryKey); err != nil {
		return fmt.Errorf("metadatastore/sqlite: delete %s: %w", primaryKey, err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (*metadatastore.DatasetMetadata, error) {
	var rec metadatastore.DatasetMetadata
	var status, stacktrace, extracted string

	if err := rows.Scan(
		&rec.PrimaryKey, &rec.DefinitionID, &rec.DatasetID, &rec.FileURI, &rec.Checksum, &status,
		&rec.LastModifiedMs, &rec.LastDownloadedMs, &rec.ErrorMessage,
		&stacktrace, &extracted,
	); err != nil {
		return nil, fmt.Errorf("metadatastore/sqlite: scan row: %w", err)
	}

	rec.Status = metadatastore.Status(status)
	if stacktrace != "" {
		_ = json.Unmarshal([]byte(stacktrace), &rec.Stacktrace)
	}
	if extracted != "" {
		rec.ExtractedMetadata = json.RawMessage(extracted)
	}
	return &rec, nil
}
