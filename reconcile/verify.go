package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/definition"
	"github.com/aims-ereefs/thredds-mirror/metadatastore"
	"github.com/aims-ereefs/thredds-mirror/publish"
)

// verifyPresent implements spec.md §4.3: for a record whose source
// lastModified has not advanced, probe the sink for destURI and flip the
// record to DELETED if it's missing. DELETED and CORRUPTED records are
// tombstones and are never re-probed (they only leave that state via a
// fresh download triggered by the source's lastModified advancing).
func (e *Engine) verifyPresent(ctx context.Context, def *definition.Definition, old *metadatastore.DatasetMetadata, publisher publish.Publisher, out *DownloadOutput) {
	if old.Status == metadatastore.StatusDeleted || old.Status == metadatastore.StatusCorrupted {
		return
	}

	exists, err := publisher.Exists(ctx, old.FileURI)
	if err != nil {
		e.logger.Warn("verify-present probe failed, leaving record untouched",
			zap.String("definitionId", def.ID), zap.String("datasetId", old.DatasetID), zap.Error(err))
		out.addWarning("%s: verify-present probe failed: %v", old.DatasetID, err)
		return
	}
	if exists {
		return
	}

	tombstone := *old
	tombstone.Status = metadatastore.StatusDeleted
	if err := e.deps.store.Upsert(ctx, &tombstone); err != nil {
		e.logger.Error("failed to persist deleted tombstone",
			zap.String("definitionId", def.ID), zap.String("datasetId", old.DatasetID), zap.Error(err))
		out.addError("%s: failed to persist deleted tombstone: %v", old.DatasetID, err)
		return
	}
	e.logger.Info("dataset no longer present at destination, marked deleted",
		zap.String("definitionId", def.ID), zap.String("datasetId", old.DatasetID), zap.String("fileUri", old.FileURI))
}
