package metadatastore

import "context"

// Store is the metadata store adapter the reconciliation loop depends on.
// Per spec, the loop performs a single batched List per definition at the
// start of reconciliation and then writes straight through; any caching
// layer sitting in front of a Store (see rediscache) must invalidate on
// every Upsert/Delete so later reads within the same run observe them.
type Store interface {
	// List returns every persisted record for definitionID, in no
	// particular order; the caller sorts as needed.
	List(ctx context.Context, definitionID string) ([]*DatasetMetadata, error)

	// Upsert creates or overwrites the record at record.Key().
	Upsert(ctx context.Context, record *DatasetMetadata) error

	// Delete removes the record at primaryKey. Deleting a record that
	// does not exist is not an error; the core never calls this directly
	// during normal reconciliation (tombstones are written via Upsert
	// with Status=DELETED), but it is part of the contract for
	// maintenance tooling.
	Delete(ctx context.Context, primaryKey string) error

	Close() error
}
