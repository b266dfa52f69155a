package reconcile

import (
	"path/filepath"
	"strings"

	"github.com/aims-ereefs/thredds-mirror/archive"
	"github.com/aims-ereefs/thredds-mirror/catalog"
	"github.com/aims-ereefs/thredds-mirror/definition"
	"github.com/aims-ereefs/thredds-mirror/internal/pathutil"
)

// destinationURI builds destURI per spec.md §6: definition output prefix
// (trailing slash enforced), joined with the source's sub-directory (if
// any), joined with the dataset's filename — with a recognised
// single-file archive extension dropped from that filename.
//
// The catalogue is an external, only semi-trusted input (spec.md §7's
// catalogue fault taxonomy already treats it as unreliable); a filename or
// sub-directory containing "../" segments must not be able to steer the
// published object outside of the definition's own destination prefix.
func destinationURI(def *definition.Definition, entry catalog.DatasetEntry) string {
	prefix := strings.TrimSuffix(def.Output.Destination, "/") + "/"
	filename, _ := archive.Recognised(entry.Filename())
	if err := pathutil.ValidateFilename(filename); err != nil {
		filename = "rejected_" + sanitizeForLogging(filename)
	}

	if entry.Source.SubDirectory != "" {
		subdir, err := pathutil.Clean(entry.Source.SubDirectory)
		if err != nil {
			subdir = ""
		}
		if subdir != "" {
			prefix += subdir + "/"
		}
	}
	return prefix + filename
}

// tempPath builds the local temp file path a dataset is downloaded to,
// per spec.md §4.4 stage 1: "<downloadDir>/<filename>". The archive
// extension (if any) is kept here — only the destination URI drops it —
// since the fetch must retrieve exactly what the source serves. SafeJoin
// guards against a catalogue-supplied filename escaping downloadDir.
func tempPath(downloadDir string, entry catalog.DatasetEntry) string {
	joined, err := pathutil.SafeJoin(downloadDir, entry.Filename())
	if err != nil {
		return filepath.Join(downloadDir, "rejected_"+sanitizeForLogging(entry.Filename()))
	}
	return joined
}

// sanitizeForLogging strips path separators from a rejected filename so
// the fallback path built from it cannot itself smuggle a traversal
// attempt.
func sanitizeForLogging(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 32 {
			return '_'
		}
		return r
	}, s)
}
