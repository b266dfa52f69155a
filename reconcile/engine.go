package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/catalog"
	"github.com/aims-ereefs/thredds-mirror/definition"
	"github.com/aims-ereefs/thredds-mirror/integrity"
	"github.com/aims-ereefs/thredds-mirror/metadatastore"
	"github.com/aims-ereefs/thredds-mirror/metrics"
	"github.com/aims-ereefs/thredds-mirror/notify"
	"github.com/aims-ereefs/thredds-mirror/publish"
	"github.com/aims-ereefs/thredds-mirror/transport"
)

// Engine orchestrates one or more definitions' reconciliation runs. It is
// wired once with every collaborator (mirroring core.NewEngine's wiring
// style in the teacher repo) and is safe to reuse across definitions
// within the same process run — only the per-definition catalog.Loader is
// constructed fresh each time, per spec.md DESIGN NOTES §9.
type Engine struct {
	deps           collaborators
	catalogTimeout time.Duration
	logger         *zap.Logger
}

// NewEngine wires an Engine with its collaborators.
func NewEngine(
	fetcher *transport.Fetcher,
	extractor integrity.Extractor,
	dispatcher *publish.Dispatcher,
	store metadatastore.Store,
	notifier *notify.Notifier,
	catalogTimeout time.Duration,
	logger *zap.Logger,
) *Engine {
	e := &Engine{
		catalogTimeout: catalogTimeout,
		logger:         logger,
	}
	e.deps = collaborators{
		loaderFactory: func() *catalog.Loader { return catalog.NewLoader(catalogTimeout, logger) },
		fetcher:       fetcher,
		extractor:     extractor,
		dispatcher:    dispatcher,
		store:         store,
		notifier:      notifier,
	}
	return e
}

// Run reconciles one DownloadDefinition, per spec.md §4.2. It returns the
// per-definition summary even when it returns a non-nil error for a
// configuration or catalogue fault (spec.md §7): callers should still
// inspect out when err != nil, as out may carry partial progress from
// before the fault.
func (e *Engine) Run(ctx context.Context, def *definition.Definition, opts RunOptions) (DownloadOutput, error) {
	out := DownloadOutput{DefinitionID: def.ID}
	rec := metrics.NewRecorder(def.ID)
	runTimer := time.Now()
	defer func() {
		metrics.RunDuration.WithLabelValues(def.ID).Observe(time.Since(runTimer).Seconds())
	}()

	if !def.Enabled {
		return out, fmt.Errorf("reconcile: definition %s is disabled", def.ID)
	}

	if opts.Limit == 0 {
		e.logger.Info("limit is zero, skipping definition entirely", zap.String("definitionId", def.ID))
		return out, nil
	}

	loader := e.deps.loaderFactory()
	catalogEntries, err := loader.Load(ctx, def)
	if err != nil {
		return out, fmt.Errorf("reconcile: %w", err)
	}

	existing, err := e.deps.store.List(ctx, def.ID)
	if err != nil {
		return out, fmt.Errorf("reconcile: load existing metadata for %s: %w", def.ID, err)
	}
	// Indexed by each record's actual persisted key, not by recomputing
	// Key() from its fields: a record written before dataset-id
	// normalization existed keeps its raw, differently-spelled key
	// forever (spec.md DESIGN NOTES §9, Scenario E) and must stay
	// invisible to this lookup rather than being silently reconciled
	// onto the canonical key.
	byKey := make(map[string]*metadatastore.DatasetMetadata, len(existing))
	for _, rec := range existing {
		key := rec.PrimaryKey
		if key == "" {
			key = rec.Key()
		}
		byKey[key] = rec
	}

	datasetIDs := make([]string, 0, len(catalogEntries))
	for id := range catalogEntries {
		datasetIDs = append(datasetIDs, id)
	}
	sort.Strings(datasetIDs) // sorted dataset-id order, per spec.md §4.2

	remaining := opts.Limit
	for _, datasetID := range datasetIDs {
		entry := catalogEntries[datasetID]
		old := byKey[metadatastore.Key(def.ID, datasetID)]

		publisher, err := e.deps.dispatcher.For(def.Output.Type)
		if err != nil {
			out.addError("%s: %v", datasetID, err)
			continue
		}

		if old != nil && entry.LastModifiedMs <= old.LastModifiedMs {
			rec.ObserveDecision(metrics.DecisionVerified)
			e.verifyPresent(ctx, def, old, publisher, &out)
			continue
		}

		if !opts.unlimited() && remaining <= 0 {
			e.logger.Info("limit reached, deferring remaining datasets",
				zap.String("definitionId", def.ID), zap.String("datasetId", datasetID))
			continue
		}

		outcome, err := e.downloadAndPublish(ctx, def, entry, old, publisher, opts, &out)
		if err != nil {
			out.addError("%s: %v", datasetID, err)
		}
		switch outcome {
		case outcomeFatal:
			rec.ObserveDecision(metrics.DecisionError)
			e.logger.Error("fatal pipeline signal, aborting remainder of definition",
				zap.String("definitionId", def.ID), zap.String("datasetId", datasetID))
			return out, fmt.Errorf("reconcile: fatal error processing %s/%s", def.ID, datasetID)
		case outcomeDownloaded:
			rec.ObserveDecision(metrics.DecisionDownloaded)
			remaining--
		default:
			rec.ObserveDecision(metrics.DecisionNoDownload)
		}
	}

	if !out.IsEmpty() {
		e.deps.notifier.DownloadSummary(ctx, notify.PerDefinitionSummary{
			DefinitionID: def.ID,
			Successes:    len(out.Successes),
			Warnings:     len(out.Warnings),
			Errors:       len(out.Errors),
		})
	}

	return out, nil
}
