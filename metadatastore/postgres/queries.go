package postgres

// SQL query constants for dataset metadata operations.

const (
	// _SQL_LIST_BY_DEFINITION retrieves every record for a definition.
	_SQL_LIST_BY_DEFINITION = `
		SELECT primary_key, definition_id, dataset_id, file_uri, checksum, status,
		       last_modified_ms, last_downloaded_ms, error_message,
		       stacktrace, extracted_metadata
		FROM dataset_metadata
		WHERE definition_id = $1`

	// _SQL_UPSERT_DATASET_METADATA creates or overwrites a record by its
	// canonical primary key.
	_SQL_UPSERT_DATASET_METADATA = `
		INSERT INTO dataset_metadata
		(primary_key, definition_id, dataset_id, file_uri, checksum, status,
		 last_modified_ms, last_downloaded_ms, error_message, stacktrace,
		 extracted_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (primary_key) DO UPDATE SET
			file_uri            = EXCLUDED.file_uri,
			checksum            = EXCLUDED.checksum,
			status              = EXCLUDED.status,
			last_modified_ms    = EXCLUDED.last_modified_ms,
			last_downloaded_ms  = EXCLUDED.last_downloaded_ms,
			error_message       = EXCLUDED.error_message,
			stacktrace          = EXCLUDED.stacktrace,
			extracted_metadata  = EXCLUDED.extracted_metadata,
			updated_at          = now()`

	// _SQL_DELETE_DATASET_METADATA removes a record by its primary key.
	_SQL_DELETE_DATASET_METADATA = `
		DELETE FROM dataset_metadata
		WHERE primary_key = $1`
)
