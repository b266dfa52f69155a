package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/archive"
	"github.com/aims-ereefs/thredds-mirror/catalog"
	"github.com/aims-ereefs/thredds-mirror/definition"
	"github.com/aims-ereefs/thredds-mirror/metadatastore"
	"github.com/aims-ereefs/thredds-mirror/metrics"
	"github.com/aims-ereefs/thredds-mirror/publish"
	"github.com/aims-ereefs/thredds-mirror/transport"
)

// downloadAndPublish implements spec.md §4.4's six ordered stages. It
// guarantees the temporary file does not outlive this call — every return
// path goes through the deferred cleanup, satisfying the temp-file
// invariant spec.md §3 invariant 5 and §5 require even when the call
// returns outcomeFatal.
func (e *Engine) downloadAndPublish(
	ctx context.Context,
	def *definition.Definition,
	entry catalog.DatasetEntry,
	old *metadatastore.DatasetMetadata,
	publisher publish.Publisher,
	opts RunOptions,
	out *DownloadOutput,
) (pipelineOutcome, error) {
	destURI := destinationURI(def, entry)
	destTemp := tempPath(def.Output.DownloadDir, entry)
	logger := e.logger.With(
		zap.String("definitionId", def.ID),
		zap.String("datasetId", entry.DatasetID),
		zap.String("destUri", destURI),
	)

	if err := os.MkdirAll(filepath.Dir(destTemp), 0o755); err != nil {
		out.addError("%s: create temp directory: %v", entry.DatasetID, err)
		return outcomeSkipped, nil
	}

	// currentPath tracks whichever file currently represents "the temp
	// file" as the pipeline progresses (the fetched archive, then its
	// expanded sibling). cleanup removes whatever it currently points to,
	// on every return path.
	currentPath := destTemp
	cleanup := func() {
		if currentPath == "" {
			return
		}
		if err := os.Remove(currentPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove temp file", zap.String("path", currentPath), zap.Error(err))
		}
	}
	defer cleanup()

	// Stage 1: space check.
	free, err := freeBytes(filepath.Dir(destTemp))
	if err != nil {
		logger.Warn("failed to stat free space, proceeding without the check", zap.Error(err))
	} else if entry.SizeBytes > 0 && free < entry.SizeBytes {
		e.deps.notifier.DiskFull(ctx, entry.AccessURL, float64(entry.SizeBytes)/(1<<20), float64(free)/(1<<20))
		out.addWarning("%s: insufficient disk space (need %d bytes, have %d)", entry.DatasetID, entry.SizeBytes, free)
		currentPath = "" // nothing was ever written
		return outcomeSkipped, nil
	}

	// Stage 2: dry-run short-circuit.
	if opts.DryRun {
		logger.Info("dry run: would download", zap.String("srcUri", entry.AccessURL))
		currentPath = ""
		return outcomeSkipped, nil
	}

	// Stage 3: fetch with retry.
	fetchStart := time.Now()
	attempts := 0
	result, err := transport.WithRetry(ctx, e.logger, func(ctx context.Context) (transport.Result, error) {
		attempts++
		return e.deps.fetcher.Fetch(ctx, entry.AccessURL, destTemp)
	})
	if attempts > 1 {
		metrics.RetryAttemptsTotal.WithLabelValues(def.ID).Add(float64(attempts - 1))
	}
	if err != nil {
		out.addError("%s: fetch failed: %v", entry.DatasetID, err)
		return outcomeSkipped, nil
	}
	metrics.DownloadDuration.WithLabelValues(def.ID).Observe(time.Since(fetchStart).Seconds())
	metrics.BytesDownloadedTotal.WithLabelValues(def.ID).Add(float64(result.BytesWritten))

	// Stage 4: optional de-archive.
	if expanded, ok, err := archive.Expand(currentPath); err != nil {
		out.addError("%s: de-archive failed: %v", entry.DatasetID, err)
		return outcomeSkipped, nil
	} else if ok {
		archivePath := currentPath
		currentPath = expanded
		if rmErr := os.Remove(archivePath); rmErr != nil {
			logger.Warn("failed to remove archive after expansion", zap.String("path", archivePath), zap.Error(rmErr))
		}
	}

	// Stage 5: integrity + metadata extract.
	tentative, err := e.deps.extractor.Extract(ctx, def.ID, entry.DatasetID, destURI, currentPath, entry.LastModifiedMs)
	if err != nil {
		out.addError("%s: integrity extraction failed: %v", entry.DatasetID, err)
		return outcomeSkipped, nil
	}
	tentative.LastDownloadedMs = time.Now().UTC().UnixMilli()

	// Stage 6: branch on tentative status and checksum.
	if tentative.Status == metadatastore.StatusCorrupted {
		if err := e.deps.store.Upsert(ctx, tentative); err != nil {
			out.addError("%s: failed to persist corrupted record: %v", entry.DatasetID, err)
			return outcomeSkipped, nil
		}
		metrics.CorruptedTotal.WithLabelValues(def.ID).Inc()
		e.deps.notifier.CorruptedFile(ctx, def.ID, entry.DatasetID, tentative.ErrorMessage)
		out.addWarning("%s: corrupted download: %s", entry.DatasetID, tentative.ErrorMessage)
		return outcomeSkipped, nil
	}

	if old != nil && old.Checksum != "" && tentative.Checksum == old.Checksum {
		// Source's last-modified advanced but content did not: update
		// only the timestamps, never touch the sink. Per spec.md
		// DESIGN NOTES §9 / Scenario D, this branch wins even when the
		// destination file is currently missing (DELETED) — a manual
		// sink deletion is sticky as long as the content hash still
		// matches the persisted checksum. This repo preserves that
		// behaviour rather than silently restoring the file.
		updated := *old
		updated.LastModifiedMs = entry.LastModifiedMs
		updated.LastDownloadedMs = tentative.LastDownloadedMs
		if err := e.deps.store.Upsert(ctx, &updated); err != nil {
			out.addError("%s: failed to persist unchanged-content record: %v", entry.DatasetID, err)
			return outcomeSkipped, nil
		}
		return outcomeSkipped, nil
	}

	// Deep content scan — slower, stricter, only run when content
	// actually changed (or there was no prior record).
	if scanErr, err := e.deps.extractor.DeepScan(ctx, currentPath); err != nil || scanErr != "" {
		tentative.Status = metadatastore.StatusCorrupted
		if err != nil {
			tentative.ErrorMessage = err.Error()
		} else {
			tentative.ErrorMessage = scanErr
		}
		if upsertErr := e.deps.store.Upsert(ctx, tentative); upsertErr != nil {
			out.addError("%s: failed to persist corrupted record: %v", entry.DatasetID, upsertErr)
			return outcomeSkipped, nil
		}
		metrics.CorruptedTotal.WithLabelValues(def.ID).Inc()
		e.deps.notifier.CorruptedFile(ctx, def.ID, entry.DatasetID, tentative.ErrorMessage)
		out.addWarning("%s: failed deep content scan: %s", entry.DatasetID, tentative.ErrorMessage)
		return outcomeSkipped, nil
	}

	if err := publisher.Publish(ctx, currentPath, destURI); err != nil {
		out.addError("%s: publish failed: %v", entry.DatasetID, err)
		return outcomeSkipped, nil
	}
	currentPath = "" // publish already moved/uploaded and removed the temp file

	if err := e.deps.store.Upsert(ctx, tentative); err != nil {
		out.addError("%s: published but failed to persist metadata: %v", entry.DatasetID, err)
		return outcomeSkipped, nil
	}
	out.Successes = append(out.Successes, tentative)
	return outcomeDownloaded, nil
}
