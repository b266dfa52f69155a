// Package definition describes the reconciliation units a run operates on:
// download definitions, the catalogue sources they list, and the filter
// that selects which datasets within those catalogues are mirrored.
package definition

import "regexp"

// SinkType identifies the kind of destination a Definition publishes to.
type SinkType string

const (
	SinkS3   SinkType = "S3"
	SinkFile SinkType = "FILE"
)

// CatalogueSource is one THREDDS catalogue URL contributing datasets to a
// Definition, with an optional sub-directory under the destination prefix
// and an optional per-source filename filter.
type CatalogueSource struct {
	CatalogueURL string
	SubDirectory string
	Files        []string
	FilenameRegexp string
}

// Output describes where a Definition's datasets are published.
type Output struct {
	Type        SinkType
	Destination string
	DownloadDir string
}

// Definition is an immutable-per-run reconciliation unit: one or more
// catalogue sources, a filename selection rule, and a sink.
type Definition struct {
	ID      string
	Enabled bool
	Sources []CatalogueSource

	// Filter applies to every source that doesn't carry its own
	// per-source Files/FilenameRegexp. Exactly one of Files or
	// FilenameRegexp should be set; if neither is set, all datasets
	// with a usable access URL are admitted.
	Files         []string
	FilenameRegexp string

	Output Output

	compiledFilter *regexp.Regexp
}

// Compile pre-parses the definition's regular expression filter, if any.
// Must be called once before Admits is used; a Definition decoded from
// JSON is not ready to filter datasets until this has run.
func (d *Definition) Compile() error {
	if d.FilenameRegexp == "" {
		return nil
	}
	re, err := regexp.Compile(d.FilenameRegexp)
	if err != nil {
		return err
	}
	d.compiledFilter = re
	return nil
}

// Admits reports whether filename passes this definition's selection rule,
// or a source's own override if it carries one.
func (d *Definition) Admits(src CatalogueSource, filename string) bool {
	if len(src.Files) > 0 {
		return containsString(src.Files, filename)
	}
	if src.FilenameRegexp != "" {
		re, err := regexp.Compile(src.FilenameRegexp)
		if err != nil {
			return false
		}
		return re.MatchString(filename)
	}

	if len(d.Files) > 0 {
		return containsString(d.Files, filename)
	}
	if d.compiledFilter != nil {
		return d.compiledFilter.MatchString(filename)
	}
	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
