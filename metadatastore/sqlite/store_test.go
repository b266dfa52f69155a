package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/metadatastore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "meta.sqlite3")
	s, err := New(dbPath, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertThenListRoundTripsAndPopulatesPrimaryKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &metadatastore.DatasetMetadata{
		DefinitionID:     "def-1",
		DatasetID:        "gbr4_simple_2018-10.nc",
		FileURI:          "file:///dest/gbr4_simple_2018-10.nc",
		Checksum:         "MD5:abc123",
		Status:           metadatastore.StatusValid,
		LastModifiedMs:   1000,
		LastDownloadedMs: 2000,
	}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	records, err := s.List(ctx, "def-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.PrimaryKey != rec.Key() {
		t.Errorf("PrimaryKey = %s, want %s", got.PrimaryKey, rec.Key())
	}
	if got.Checksum != rec.Checksum || got.Status != rec.Status {
		t.Errorf("round-tripped record = %+v, want matching %+v", got, rec)
	}
}

func TestUpsertOverwritesByCanonicalKeyRegardlessOfDatasetIDSpelling(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &metadatastore.DatasetMetadata{
		DefinitionID: "def-1",
		DatasetID:    "gbr4_simple_2018-10.nc",
		Status:       metadatastore.StatusValid,
		Checksum:     "MD5:v1",
	}
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	second := &metadatastore.DatasetMetadata{
		DefinitionID: "def-1",
		DatasetID:    "gbr4_simple_2018-10.nc",
		Status:       metadatastore.StatusValid,
		Checksum:     "MD5:v2",
	}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	records, err := s.List(ctx, "def-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (second Upsert should overwrite the first)", len(records))
	}
	if records[0].Checksum != "MD5:v2" {
		t.Errorf("Checksum = %s, want MD5:v2 after overwrite", records[0].Checksum)
	}
}

func TestListScopesToDefinitionID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, &metadatastore.DatasetMetadata{DefinitionID: "def-1", DatasetID: "a.nc", Status: metadatastore.StatusValid}); err != nil {
		t.Fatalf("Upsert def-1: %v", err)
	}
	if err := s.Upsert(ctx, &metadatastore.DatasetMetadata{DefinitionID: "def-2", DatasetID: "b.nc", Status: metadatastore.StatusValid}); err != nil {
		t.Fatalf("Upsert def-2: %v", err)
	}

	records, err := s.List(ctx, "def-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].DatasetID != "a.nc" {
		t.Fatalf("List(def-1) = %+v, want exactly the def-1 record", records)
	}
}

func TestDeleteRemovesRecordByPrimaryKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &metadatastore.DatasetMetadata{DefinitionID: "def-1", DatasetID: "a.nc", Status: metadatastore.StatusValid}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Delete(ctx, rec.Key()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	records, err := s.List(ctx, "def-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records after delete, want 0", len(records))
	}
}

func TestDeleteOfNonexistentKeyIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete(context.Background(), "def-1/does_not_exist_nc"); err != nil {
		t.Errorf("Delete of a missing key returned an error: %v", err)
	}
}
