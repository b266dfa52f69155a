// Package publish implements the sink side of the download pipeline: the
// capability that makes a successfully downloaded temporary file visible
// at its final destination URI (spec.md §4.4 "Publish", DESIGN NOTES §9
// "model the sink as a capability ... do not scatter if scheme==file
// throughout the pipeline").
package publish

import "context"

// Publisher is the two-phase publish capability the reconciliation loop
// depends on. Exactly one concrete Publisher backs a given Definition's
// Output, selected by Dispatcher.For (dispatch.go) from the definition's
// SinkType.
type Publisher interface {
	// Publish moves tempPath to destURI. For a filesystem sink this is a
	// rename (falling back to copy-then-delete across filesystems); for
	// an object-store sink this is a multi-part upload followed by
	// deleting tempPath. On success the content at destURI is the exact
	// bytes that were at tempPath.
	Publish(ctx context.Context, tempPath, destURI string) error

	// Exists probes whether destURI currently holds an object, used by
	// the verify-present check (spec.md §4.3).
	Exists(ctx context.Context, destURI string) (bool, error)
}
