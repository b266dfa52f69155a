// Package catalog parses THREDDS XML catalogues and resolves them into the
// flat {datasetId -> DatasetEntry} mapping the reconciliation loop diffs
// against persisted metadata.
package catalog

import "github.com/aims-ereefs/thredds-mirror/definition"

// DatasetEntry is one admitted dataset: the catalogue attributes the loop
// needs plus the CatalogueSource it was discovered under, per spec.md §3.
type DatasetEntry struct {
	DatasetID      string
	URLPath        string
	LastModifiedMs int64
	SizeBytes      int64
	AccessURL      string
	Source         definition.CatalogueSource
}

// Filename returns the last path segment of the dataset's URL path, the
// value both the selection filter and the destination URI are built from.
func (e DatasetEntry) Filename() string {
	return lastPathSegment(e.URLPath)
}
