// Package metrics provides Prometheus instrumentation for the
// reconciliation run, ported from the teacher's metrics package
// conventions: promauto-registered vectors scoped by definition and
// outcome instead of by HTTP route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatasetsProcessedTotal counts every catalogue entry the loop
	// evaluated, labeled by the decision it reached.
	DatasetsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thredds_mirror_datasets_processed_total",
			Help: "Total number of catalogue datasets evaluated by the reconciliation loop",
		},
		[]string{"definition_id", "decision"},
	)

	// DownloadDuration tracks the wall-clock time of the fetch stage.
	DownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thredds_mirror_download_duration_seconds",
			Help:    "Duration of the fetch-with-retry stage",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"definition_id"},
	)

	// RetryAttemptsTotal counts every fetch retry attempt beyond the first.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thredds_mirror_retry_attempts_total",
			Help: "Total number of fetch retry attempts",
		},
		[]string{"definition_id"},
	)

	// BytesDownloadedTotal sums the bytes actually written to disk.
	BytesDownloadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thredds_mirror_bytes_downloaded_total",
			Help: "Total bytes fetched from THREDDS catalogue sources",
		},
		[]string{"definition_id"},
	)

	// CorruptedTotal counts CORRUPTED outcomes.
	CorruptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thredds_mirror_corrupted_total",
			Help: "Total number of downloads that resulted in a CORRUPTED record",
		},
		[]string{"definition_id"},
	)

	// MetadataStoreOpDuration tracks store List/Upsert/Delete latency.
	MetadataStoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thredds_mirror_metadata_store_op_duration_seconds",
			Help:    "Metadata store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RunDuration tracks the wall-clock time of one definition's run.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thredds_mirror_run_duration_seconds",
			Help:    "Duration of one definition's reconciliation run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"definition_id"},
	)
)

// Decision label values for DatasetsProcessedTotal.
const (
	DecisionVerified   = "verified"
	DecisionDownloaded = "downloaded"
	DecisionNoDownload = "no_download"
	DecisionError      = "error"
)

// Recorder is a thin wrapper so reconcile.Engine depends on a scoped
// value instead of reaching for the package-level vectors directly,
// making it straightforward to no-op in tests.
type Recorder struct {
	DefinitionID string
}

// NewRecorder returns a Recorder scoped to one definition.
func NewRecorder(definitionID string) *Recorder {
	return &Recorder{DefinitionID: definitionID}
}

// ObserveDecision increments DatasetsProcessedTotal for decision.
func (r *Recorder) ObserveDecision(decision string) {
	DatasetsProcessedTotal.WithLabelValues(r.DefinitionID, decision).Inc()
}
