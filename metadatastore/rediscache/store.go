// Package rediscache wraps any metadatastore.Store with a Redis
// read-through cache of List results, combining the teacher's
// metadata/redis JSON-in-Redis encoding style with core/cache.go's
// TTL-based eviction policy, renamed to operate on *DatasetMetadata.
//
// This directly implements spec.md §4.8's two requirements: the
// reconciliation loop performs a single batched List per definition at
// the start of a run, and "the store's cache, if any, must be invalidated
// on writes so subsequent reads reflect them" — every Upsert evicts the
// definition's cached list both before and after writing to the backing
// store, and every Delete evicts it after the backing delete, so the next
// List reads the backing store again.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/metadatastore"
)

// Store wraps a backing metadatastore.Store with a Redis read-through
// cache of per-definition List results.
type Store struct {
	backing metadatastore.Store
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	logger  *zap.Logger
}

// New constructs a Store. backing is the store of record; ttl is how long
// a cached List result is trusted before a fresh read is forced (the
// cache is also explicitly invalidated on every write, independent of
// TTL).
func New(backing metadatastore.Store, client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Store {
	if keyPrefix == "" {
		keyPrefix = "thredds-mirror:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{backing: backing, client: client, prefix: keyPrefix, ttl: ttl, logger: logger}
}

func (s *Store) listKey(definitionID string) string {
	return s.prefix + "list:" + definitionID
}

func (s *Store) List(ctx context.Context, definitionID string) ([]*metadatastore.DatasetMetadata, error) {
	key := s.listKey(definitionID)

	raw, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var records []*metadatastore.DatasetMetadata
		if decodeErr := json.Unmarshal([]byte(raw), &records); decodeErr == nil {
			return records, nil
		}
		s.logger.Warn("rediscache: discarding undecodable cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		s.logger.Warn("rediscache: redis read failed, falling through to backing store", zap.Error(err))
	}

	records, err := s.backing.List(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	if encoded, encErr := json.Marshal(records); encErr == nil {
		if setErr := s.client.Set(ctx, key, encoded, s.ttl).Err(); setErr != nil {
			s.logger.Warn("rediscache: failed to populate cache", zap.Error(setErr))
		}
	}
	return records, nil
}

func (s *Store) Upsert(ctx context.Context, record *metadatastore.DatasetMetadata) error {
	if err := s.invalidate(ctx, record.DefinitionID); err != nil {
		s.logger.Warn("rediscache: invalidate before upsert failed", zap.Error(err))
	}
	if err := s.backing.Upsert(ctx, record); err != nil {
		return err
	}
	return s.invalidate(ctx, record.DefinitionID)
}

func (s *Store) Delete(ctx context.Context, primaryKey string) error {
	if err := s.backing.Delete(ctx, primaryKey); err != nil {
		return err
	}
	// A canonical primary key is definitionID + "/" + a normalized dataset
	// id that contains no "/", so the definition whose cached list must be
	// evicted is everything before the key's last "/".
	if idx := strings.LastIndex(primaryKey, "/"); idx >= 0 {
		return s.invalidate(ctx, primaryKey[:idx])
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("rediscache: close redis client: %w", err)
	}
	return s.backing.Close()
}

func (s *Store) invalidate(ctx context.Context, definitionID string) error {
	return s.client.Del(ctx, s.listKey(definitionID)).Err()
}
