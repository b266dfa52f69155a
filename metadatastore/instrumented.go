package metadatastore

import (
	"context"
	"time"

	"github.com/aims-ereefs/thredds-mirror/metrics"
)

// instrumentedStore wraps a Store and records metrics.MetadataStoreOpDuration
// around every call, mirroring core.Engine's pattern of wrapping a backend
// behind a decorator rather than threading timing calls through callers.
type instrumentedStore struct {
	backing Store
}

// Instrument wraps backing so every List/Upsert/Delete call observes
// metrics.MetadataStoreOpDuration, regardless of which concrete backend
// (postgres, sqlite, rediscache) sits underneath.
func Instrument(backing Store) Store {
	return &instrumentedStore{backing: backing}
}

func (s *instrumentedStore) List(ctx context.Context, definitionID string) ([]*DatasetMetadata, error) {
	start := time.Now()
	defer func() {
		metrics.MetadataStoreOpDuration.WithLabelValues("list").Observe(time.Since(start).Seconds())
	}()
	return s.backing.List(ctx, definitionID)
}

func (s *instrumentedStore) Upsert(ctx context.Context, record *DatasetMetadata) error {
	start := time.Now()
	defer func() {
		metrics.MetadataStoreOpDuration.WithLabelValues("upsert").Observe(time.Since(start).Seconds())
	}()
	return s.backing.Upsert(ctx, record)
}

func (s *instrumentedStore) Delete(ctx context.Context, primaryKey string) error {
	start := time.Now()
	defer func() {
		metrics.MetadataStoreOpDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()
	return s.backing.Delete(ctx, primaryKey)
}

func (s *instrumentedStore) Close() error {
	return s.backing.Close()
}
