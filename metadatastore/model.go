// Package metadatastore defines the authoritative persisted record for a
// mirrored dataset and the store interface the reconciliation loop uses
// to read and write it.
package metadatastore

import (
	"encoding/json"
	"errors"
	"strings"
)

// Status is the lifecycle state of a DatasetMetadata record.
type Status string

const (
	StatusValid     Status = "VALID"
	StatusCorrupted Status = "CORRUPTED"
	StatusDeleted   Status = "DELETED"
)

// DatasetMetadata is the authoritative record for one mirrored file.
// The primary key is DefinitionID + "/" + NormalizedDatasetID (see
// NormalizeDatasetID); DatasetID retains the original, unnormalized value
// so the record can still be displayed and diffed against catalogue
// entries, which always look up by the original id.
type DatasetMetadata struct {
	DefinitionID   string
	DatasetID      string
	FileURI        string
	Checksum       string
	Status         Status
	LastModifiedMs int64
	LastDownloadedMs int64
	ErrorMessage   string
	Stacktrace     []string

	// PrimaryKey is the key this record actually lives under in the
	// store, as read back by List. It is populated by Store
	// implementations on read and ignored on write (Upsert always writes
	// to Key(), never to this field) — the two differ only for a record
	// persisted before key normalization existed (see NormalizeDatasetID).
	// The reconciliation loop matches catalogue entries against existing
	// records by this field, not by the recomputed Key(), so a legacy,
	// differently-spelled key is genuinely invisible to that match rather
	// than accidentally reconciled away.
	PrimaryKey string `json:"primaryKey,omitempty"`

	// ExtractedMetadata is the opaque scientific metadata blob produced by
	// the integrity adapter. The store persists it verbatim and the
	// reconciliation loop never interprets it.
	ExtractedMetadata json.RawMessage
}

// Key returns the canonical primary key for this record.
func (m *DatasetMetadata) Key() string {
	return Key(m.DefinitionID, m.DatasetID)
}

// Key builds the canonical primary key for a (definitionID, datasetID)
// pair using the store's key normalization rule.
func Key(definitionID, datasetID string) string {
	return definitionID + "/" + NormalizeDatasetID(datasetID)
}

// NormalizeDatasetID replaces every character outside the store's key
// alphabet with "_". In practice the only offender ever seen in a dataset
// id is a literal dot, so "gbr4_simple_2018-10.nc" becomes
// "gbr4_simple_2018-10_nc".
//
// This normalization is the documented source of "legacy key" records:
// any record persisted before normalization was introduced keeps its raw,
// dotted key and is invisible to lookups by the canonical key. The loop
// does not attempt to migrate or merge these; see reconcile's decision
// matrix and DESIGN.md.
func NormalizeDatasetID(datasetID string) string {
	var b strings.Builder
	b.Grow(len(datasetID))
	for _, r := range datasetID {
		if isSafeKeyRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isSafeKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// ErrNotFound signals that no record exists for a key. No Store method
// returns it: Delete of a missing key succeeds.
var ErrNotFound = errors.New("metadatastore: record not found")
