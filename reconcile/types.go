// Package reconcile implements the download reconciliation engine: the
// core of this system, per spec.md §1. Engine.Run diffs one
// DownloadDefinition's catalogue against persisted metadata and drives
// each dataset through verify-present or download-and-publish, per
// spec.md §4.2.
package reconcile

import (
	"fmt"

	"github.com/aims-ereefs/thredds-mirror/catalog"
	"github.com/aims-ereefs/thredds-mirror/integrity"
	"github.com/aims-ereefs/thredds-mirror/metadatastore"
	"github.com/aims-ereefs/thredds-mirror/notify"
	"github.com/aims-ereefs/thredds-mirror/publish"
	"github.com/aims-ereefs/thredds-mirror/transport"
)


// RunOptions carries the run-scoped knobs spec.md §6 assigns to the
// outer CLI/env collaborator; the core never reads the environment
// itself.
type RunOptions struct {
	// DryRun logs intended transfers without touching the temp directory
	// or the sink (spec.md §4.4 stage 2).
	DryRun bool

	// Limit caps the number of successful downloads for this definition.
	// <=0 together with Limit < 0 means unlimited; Limit == 0 means "do
	// nothing" (spec.md §4.2).
	Limit int
}

// unlimited reports whether o.Limit imposes no cap.
func (o RunOptions) unlimited() bool {
	return o.Limit < 0
}

// DownloadOutput is the per-definition summary spec.md §4.2 returns:
// three disjoint lists of successes, warnings, and errors.
type DownloadOutput struct {
	DefinitionID string
	Successes    []*metadatastore.DatasetMetadata
	Warnings     []string
	Errors       []string
}

// IsEmpty reports whether the summary carries nothing worth notifying
// about, per spec.md §4.7.
func (o DownloadOutput) IsEmpty() bool {
	return len(o.Successes) == 0 && len(o.Warnings) == 0 && len(o.Errors) == 0
}

func (o *DownloadOutput) addWarning(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

func (o *DownloadOutput) addError(format string, args ...any) {
	o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
}

// pipelineOutcome is the tri-state signal the download-and-publish
// pipeline returns internally, replacing the source's "null means halt"
// nullable-boolean return per spec.md DESIGN NOTES §9: a tagged variant,
// never an overloaded nullable bool.
type pipelineOutcome int

const (
	// outcomeSkipped means the pipeline did not download (disk full,
	// content unchanged, corrupted, publish failure) — recoverable, the
	// loop continues to the next dataset without consuming limit quota.
	outcomeSkipped pipelineOutcome = iota
	// outcomeDownloaded means a new or changed file was published and
	// its metadata persisted; consumes one unit of limit quota.
	outcomeDownloaded
	// outcomeFatal means this definition's run cannot safely continue
	// (e.g. out-of-memory bubbling up); the loop aborts the remainder of
	// this definition and surfaces the accumulated summary.
	outcomeFatal
)

// collaborators bundles every dependency Engine needs, mirroring
// core.Engine's constructor-injection style in the teacher repo.
type collaborators struct {
	loaderFactory func() *catalog.Loader
	fetcher       *transport.Fetcher
	extractor     integrity.Extractor
	dispatcher    *publish.Dispatcher
	store         metadatastore.Store
	notifier      *notify.Notifier
}
