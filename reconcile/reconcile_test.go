package reconcile_test

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aims-ereefs/thredds-mirror/definition"
	"github.com/aims-ereefs/thredds-mirror/integrity"
	"github.com/aims-ereefs/thredds-mirror/metadatastore"
	"github.com/aims-ereefs/thredds-mirror/metadatastore/sqlite"
	"github.com/aims-ereefs/thredds-mirror/notify"
	"github.com/aims-ereefs/thredds-mirror/publish"
	"github.com/aims-ereefs/thredds-mirror/reconcile"
	"github.com/aims-ereefs/thredds-mirror/transport"
)

// This file drives the reconciliation engine end to end against a local
// httptest server standing in for a THREDDS catalogue and its
// HTTPServer-type access endpoint, exercising the decision matrix and
// lifecycle scenarios the reconciliation loop is built around. Checksums
// are computed from synthetic fixture content rather than hardcoded, since
// the real dataset bytes these scenarios were originally observed against
// aren't available to a unit test.

// catalogFile is one dataset this fixture's catalogue advertises.
type catalogFile struct {
	Filename     string
	LastModified string // RFC3339
	Content      []byte
}

// catalogFixture is a small, mutable stand-in for a THREDDS server: its
// XML catalogue and its file bodies can be replaced between engine runs to
// simulate the catalogue changing over time.
type catalogFixture struct {
	mu    sync.Mutex
	xml   string
	files map[string][]byte
}

func newCatalogFixture() (*httptest.Server, *catalogFixture) {
	fx := &catalogFixture{files: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/catalog.xml", func(w http.ResponseWriter, r *http.Request) {
		fx.mu.Lock()
		body := fx.xml
		fx.mu.Unlock()
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/data/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/data/")
		fx.mu.Lock()
		content, ok := fx.files[name]
		fx.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(content)
	})
	srv := httptest.NewServer(mux)
	return srv, fx
}

// set replaces the advertised catalogue with exactly these files.
func (fx *catalogFixture) set(files ...catalogFile) {
	fx.mu.Lock()
	defer fx.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<catalog><service name="http" serviceType="HTTPServer" base="/data/"/>`)
	for _, f := range files {
		fmt.Fprintf(&sb, `<dataset name=%q urlPath=%q><date type="modified">%s</date>`,
			f.Filename, f.Filename, f.LastModified)
		fmt.Fprintf(&sb, `<access serviceName="http" urlPath=%q/></dataset>`, f.Filename)
		fx.files[f.Filename] = f.Content
	}
	sb.WriteString(`</catalog>`)
	fx.xml = sb.String()
}

func md5Checksum(content []byte) string {
	sum := md5.Sum(content)
	return "MD5:" + hex.EncodeToString(sum[:])
}

func mustMillis(t *testing.T, rfc3339 string) int64 {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		t.Fatalf("parse timestamp %q: %v", rfc3339, err)
	}
	return ts.UTC().UnixMilli()
}

// testHarness wires one Engine against one sqlite-backed Store and one
// catalogue fixture, mirroring the collaborators cmd/main.go assembles.
type testHarness struct {
	t        *testing.T
	engine   *reconcile.Engine
	store    metadatastore.Store
	def      *definition.Definition
	destDir  string
	dbPath   string
	fixture  *catalogFixture
	server   *httptest.Server
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	server, fixture := newCatalogFixture()
	t.Cleanup(server.Close)

	destDir := t.TempDir()
	downloadDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "meta.sqlite3")

	logger := zap.NewNop()
	store, err := sqlite.New(dbPath, logger)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fetcher := transport.NewFetcher(server.Client())
	extractor := integrity.NewChecksumExtractor()
	dispatcher := publish.NewDispatcher(nil)

	sess := session.Must(session.NewSession(&aws.Config{
		Region:      aws.String("us-east-1"),
		Credentials: credentials.NewStaticCredentials("test", "test", ""),
	}))
	// Empty Channels means every notification short-circuits before any
	// SNS call is made (notify.Notifier.publish returns immediately when
	// the topic ARN is empty), so this is safe without real connectivity.
	notifier := notify.New(sess, notify.Channels{}, rate.NewLimiter(rate.Limit(100), 100), logger)

	engine := reconcile.NewEngine(fetcher, extractor, dispatcher, store, notifier, time.Minute, logger)

	def := &definition.Definition{
		ID:      "gbr4-hourly",
		Enabled: true,
		Sources: []definition.CatalogueSource{{CatalogueURL: server.URL + "/catalog.xml"}},
		Output: definition.Output{
			Type:        definition.SinkFile,
			Destination: "file://" + destDir,
			DownloadDir: downloadDir,
		},
	}
	if err := def.Compile(); err != nil {
		t.Fatalf("compile definition: %v", err)
	}

	return &testHarness{
		t: t, engine: engine, store: store, def: def,
		destDir: destDir, dbPath: dbPath, fixture: fixture, server: server,
	}
}

func (h *testHarness) run(opts reconcile.RunOptions) (reconcile.DownloadOutput, error) {
	h.t.Helper()
	return h.engine.Run(context.Background(), h.def, opts)
}

func (h *testHarness) destPath(filename string) string {
	return filepath.Join(h.destDir, filename)
}

func (h *testHarness) requireFileContent(filename string, want []byte) {
	h.t.Helper()
	got, err := os.ReadFile(h.destPath(filename))
	if err != nil {
		h.t.Fatalf("read destination file %s: %v", filename, err)
	}
	if string(got) != string(want) {
		h.t.Errorf("destination file %s: got %q, want %q", filename, got, want)
	}
}

func (h *testHarness) requireFileAbsent(filename string) {
	h.t.Helper()
	if _, err := os.Stat(h.destPath(filename)); !os.IsNotExist(err) {
		h.t.Errorf("expected destination file %s to be absent, stat err=%v", filename, err)
	}
}

func (h *testHarness) recordByDatasetID(datasetID string) *metadatastore.DatasetMetadata {
	h.t.Helper()
	records, err := h.store.List(context.Background(), h.def.ID)
	if err != nil {
		h.t.Fatalf("list records: %v", err)
	}
	for _, r := range records {
		if r.DatasetID == datasetID {
			return r
		}
	}
	return nil
}

const (
	file10 = "gbr4_simple_2018-10.nc"
	file11 = "gbr4_simple_2018-11.nc"
	file12 = "gbr4_simple_2018-12.nc"
	file01 = "gbr4_simple_2019-01.nc"
	file02 = "gbr4_simple_2019-02.nc"
)

var (
	content10v1 = []byte("gbr4 ocean temperature, month 2018-10, revision 1")
	content11v1 = []byte("gbr4 ocean temperature, month 2018-11, revision 1")
	content12v1 = []byte("gbr4 ocean temperature, month 2018-12, revision 1")
	content12v2 = []byte("gbr4 ocean temperature, month 2018-12, revision 2 (re-fetched)")
	content01v1 = []byte("gbr4 ocean temperature, month 2019-01, revision 1")
	content02v1 = []byte("gbr4 ocean temperature, month 2019-02, revision 1")
)

// seedScenarioA runs the initial four-file download (spec scenario A) and
// asserts its outcome, returning the harness for further scenarios.
func seedScenarioA(t *testing.T) *testHarness {
	t.Helper()
	h := newHarness(t)
	h.fixture.set(
		catalogFile{file10, "2018-11-05T12:46:10Z", content10v1},
		catalogFile{file11, "2018-12-02T14:05:34Z", content11v1},
		catalogFile{file12, "2018-12-10T08:52:59Z", content12v1},
		catalogFile{file01, "2019-01-19T01:09:58Z", content01v1},
	)

	out, err := h.run(reconcile.RunOptions{Limit: -1, DryRun: false})
	if err != nil {
		t.Fatalf("scenario A run: %v", err)
	}
	if len(out.Successes) != 4 {
		t.Fatalf("scenario A: got %d successes, want 4 (errors=%v warnings=%v)", len(out.Successes), out.Errors, out.Warnings)
	}
	if len(out.Errors) != 0 || len(out.Warnings) != 0 {
		t.Fatalf("scenario A: unexpected warnings/errors: %v / %v", out.Warnings, out.Errors)
	}

	for filename, content := range map[string][]byte{
		file10: content10v1, file11: content11v1, file12: content12v1, file01: content01v1,
	} {
		h.requireFileContent(filename, content)
	}

	for filename, content := range map[string][]byte{
		file10: content10v1, file11: content11v1, file12: content12v1, file01: content01v1,
	} {
		rec := h.recordByDatasetID(filename)
		if rec == nil {
			t.Fatalf("scenario A: no record for %s", filename)
		}
		if rec.Status != metadatastore.StatusValid {
			t.Errorf("scenario A: %s status = %s, want VALID", filename, rec.Status)
		}
		if rec.Checksum != md5Checksum(content) {
			t.Errorf("scenario A: %s checksum = %s, want %s", filename, rec.Checksum, md5Checksum(content))
		}
		if rec.LastDownloadedMs < rec.LastModifiedMs {
			t.Errorf("scenario A: %s lastDownloaded (%d) < lastModified (%d)", filename, rec.LastDownloadedMs, rec.LastModifiedMs)
		}
	}
	return h
}

func TestReconcileScenarioA(t *testing.T) {
	seedScenarioA(t)
}

// TestReconcileScenarioB exercises the partial-update path: two untouched
// files, one re-written, one unchanged-content-but-advanced-timestamp, one
// brand new.
func TestReconcileScenarioB(t *testing.T) {
	h := seedScenarioA(t)

	before12, err := os.Stat(h.destPath(file10))
	if err != nil {
		t.Fatalf("stat %s before B: %v", file10, err)
	}

	h.fixture.set(
		catalogFile{file10, "2018-11-05T12:46:10Z", content10v1}, // unchanged
		catalogFile{file11, "2018-12-02T14:05:34Z", content11v1}, // unchanged
		catalogFile{file12, "2019-01-08T08:52:59Z", content12v2}, // new lastMod + new content
		catalogFile{file01, "2019-01-20T01:09:58Z", content01v1}, // new lastMod, identical content
		catalogFile{file02, "2019-01-20T02:09:58Z", content02v1}, // brand new
	)

	out, err := h.run(reconcile.RunOptions{Limit: -1, DryRun: false})
	if err != nil {
		t.Fatalf("scenario B run: %v", err)
	}
	if len(out.Successes) != 2 {
		t.Fatalf("scenario B: got %d successes, want 2 (errors=%v warnings=%v)", len(out.Successes), out.Errors, out.Warnings)
	}

	after10, err := os.Stat(h.destPath(file10))
	if err != nil {
		t.Fatalf("stat %s after B: %v", file10, err)
	}
	if !after10.ModTime().Equal(before12.ModTime()) {
		t.Errorf("scenario B: %s was rewritten on disk, want untouched (verify-present only)", file10)
	}

	h.requireFileContent(file12, content12v2)
	rec12 := h.recordByDatasetID(file12)
	if rec12 == nil || rec12.Checksum != md5Checksum(content12v2) {
		t.Errorf("scenario B: %s record = %+v, want checksum %s", file12, rec12, md5Checksum(content12v2))
	}

	rec01 := h.recordByDatasetID(file01)
	if rec01 == nil {
		t.Fatalf("scenario B: no record for %s", file01)
	}
	if rec01.LastModifiedMs != mustMillis(t, "2019-01-20T01:09:58Z") {
		t.Errorf("scenario B: %s lastModified not advanced: got %d", file01, rec01.LastModifiedMs)
	}
	if rec01.Checksum != md5Checksum(content01v1) {
		t.Errorf("scenario B: %s checksum changed despite identical content", file01)
	}
	h.requireFileContent(file01, content01v1) // still the original bytes on disk

	rec02 := h.recordByDatasetID(file02)
	if rec02 == nil || rec02.Status != metadatastore.StatusValid || rec02.Checksum != md5Checksum(content02v1) {
		t.Errorf("scenario B: %s record = %+v, want fresh VALID record", file02, rec02)
	}
	h.requireFileContent(file02, content02v1)
}

// TestReconcileScenarioCD chains scenario C (sink files deleted out from
// under an unchanged catalogue) into scenario D (the source then changes,
// including the "sticky deletion" case where content compares unchanged
// even though the destination is gone).
func TestReconcileScenarioCD(t *testing.T) {
	h := seedScenarioA(t)

	for _, f := range []string{file11, file12, file01} {
		if err := os.Remove(h.destPath(f)); err != nil {
			t.Fatalf("remove %s: %v", f, err)
		}
	}

	// Scenario C: re-run with the original, unchanged catalogue.
	out, err := h.run(reconcile.RunOptions{Limit: -1, DryRun: false})
	if err != nil {
		t.Fatalf("scenario C run: %v", err)
	}
	if len(out.Successes) != 0 {
		t.Fatalf("scenario C: got %d successes, want 0 (no downloads expected)", len(out.Successes))
	}

	rec10 := h.recordByDatasetID(file10)
	if rec10 == nil || rec10.Status != metadatastore.StatusValid {
		t.Errorf("scenario C: %s status = %+v, want VALID", file10, rec10)
	}
	origChecksum12 := md5Checksum(content12v1)
	origModified01 := mustMillis(t, "2019-01-19T01:09:58Z")
	for filename, wantChecksum := range map[string]string{
		file11: md5Checksum(content11v1), file12: origChecksum12, file01: md5Checksum(content01v1),
	} {
		rec := h.recordByDatasetID(filename)
		if rec == nil {
			t.Fatalf("scenario C: no record for %s", filename)
		}
		if rec.Status != metadatastore.StatusDeleted {
			t.Errorf("scenario C: %s status = %s, want DELETED", filename, rec.Status)
		}
		if rec.Checksum != wantChecksum {
			t.Errorf("scenario C: %s checksum changed, want preserved %s got %s", filename, wantChecksum, rec.Checksum)
		}
	}
	rec01 := h.recordByDatasetID(file01)
	if rec01.LastModifiedMs != origModified01 {
		t.Errorf("scenario C: %s lastModified changed, want preserved", file01)
	}

	// Scenario D: the source changes for 12 (new content) and 01 (new
	// lastMod, identical content), plus a brand new file 02.
	h.fixture.set(
		catalogFile{file10, "2018-11-05T12:46:10Z", content10v1},
		catalogFile{file11, "2018-12-02T14:05:34Z", content11v1},
		catalogFile{file12, "2019-01-08T08:52:59Z", content12v2},
		catalogFile{file01, "2019-01-20T01:09:58Z", content01v1},
		catalogFile{file02, "2019-01-20T02:09:58Z", content02v1},
	)

	out, err = h.run(reconcile.RunOptions{Limit: -1, DryRun: false})
	if err != nil {
		t.Fatalf("scenario D run: %v", err)
	}

	rec12 := h.recordByDatasetID(file12)
	if rec12 == nil || rec12.Status != metadatastore.StatusValid || rec12.Checksum != md5Checksum(content12v2) {
		t.Errorf("scenario D: %s = %+v, want VALID with new checksum", file12, rec12)
	}
	h.requireFileContent(file12, content12v2)

	// The "sticky deletion" case: 01's content compares unchanged against
	// its persisted checksum even though the destination file is missing,
	// so the content-unchanged branch wins and the file is never
	// republished; the record stays DELETED with only its timestamps
	// advanced.
	rec01 = h.recordByDatasetID(file01)
	if rec01 == nil || rec01.Status != metadatastore.StatusDeleted {
		t.Errorf("scenario D: %s = %+v, want to remain DELETED (sticky deletion)", file01, rec01)
	}
	if rec01.LastModifiedMs != mustMillis(t, "2019-01-20T01:09:58Z") {
		t.Errorf("scenario D: %s lastModified not advanced", file01)
	}
	h.requireFileAbsent(file01)

	rec02 := h.recordByDatasetID(file02)
	if rec02 == nil || rec02.Status != metadatastore.StatusValid {
		t.Errorf("scenario D: %s = %+v, want fresh VALID record", file02, rec02)
	}
	h.requireFileContent(file02, content02v1)
}

// TestReconcileScenarioE reproduces the legacy-primary-key lookup miss:
// a record persisted before dataset-id normalization existed keeps a
// differently-spelled key forever and is invisible to the canonical-key
// lookup the loop performs, so it is never reconciled and a fresh record
// is written under the canonical key instead.
func TestReconcileScenarioE(t *testing.T) {
	h := newHarness(t)

	legacyKey := h.def.ID + "/" + file10 // unsanitised: literal dot, not "_nc"
	canonicalKey := metadatastore.Key(h.def.ID, file10)
	if legacyKey == canonicalKey {
		t.Fatalf("test fixture error: legacy and canonical keys coincide")
	}

	seedLegacyRecord(t, h.dbPath, legacyKey, h.def.ID, file10)

	h.fixture.set(catalogFile{file10, "2018-11-05T12:46:10Z", content10v1})
	out, err := h.run(reconcile.RunOptions{Limit: -1, DryRun: false})
	if err != nil {
		t.Fatalf("scenario E run: %v", err)
	}
	if len(out.Successes) != 1 {
		t.Fatalf("scenario E: got %d successes, want 1 (legacy record should not suppress the download)", len(out.Successes))
	}

	records, err := h.store.List(context.Background(), h.def.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("scenario E: got %d records, want 2 (legacy + fresh canonical)", len(records))
	}

	var legacy, fresh *metadatastore.DatasetMetadata
	for _, r := range records {
		switch r.PrimaryKey {
		case legacyKey:
			legacy = r
		case canonicalKey:
			fresh = r
		}
	}
	if legacy == nil {
		t.Fatalf("scenario E: legacy record vanished, want it left untouched under its original key")
	}
	if legacy.Status != metadatastore.StatusValid || legacy.Checksum != "MD5:legacystaticdigest000000000000" {
		t.Errorf("scenario E: legacy record was modified, want untouched: %+v", legacy)
	}
	if fresh == nil {
		t.Fatalf("scenario E: no fresh record written under the canonical key %s", canonicalKey)
	}
	if fresh.Status != metadatastore.StatusValid || fresh.Checksum != md5Checksum(content10v1) {
		t.Errorf("scenario E: fresh record = %+v, want VALID with checksum %s", fresh, md5Checksum(content10v1))
	}
}

// seedLegacyRecord inserts a row directly through a raw SQL connection
// (bypassing Store.Upsert, which always writes under the canonical key),
// simulating a record written before this store normalised its keys.
func seedLegacyRecord(t *testing.T, dbPath, legacyKey, definitionID, datasetID string) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open raw sqlite connection: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		INSERT INTO dataset_metadata
			(primary_key, definition_id, dataset_id, file_uri, checksum, status,
			 last_modified_ms, last_downloaded_ms, error_message, stacktrace, extracted_metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', '[]', '{}')`,
		legacyKey, definitionID, datasetID,
		"file:///var/mirror/legacy/"+datasetID,
		"MD5:legacystaticdigest000000000000",
		string(metadatastore.StatusValid),
		mustMillis(t, "2017-01-01T00:00:00Z"),
		mustMillis(t, "2017-01-01T00:00:00Z"),
	)
	if err != nil {
		t.Fatalf("seed legacy record: %v", err)
	}
}

// TestReconcileScenarioF exercises a corrupted download: the transport
// succeeds but the bundled integrity extractor treats a zero-byte file as
// CORRUPTED.
func TestReconcileScenarioF(t *testing.T) {
	h := newHarness(t)
	h.fixture.set(catalogFile{file10, "2018-11-05T12:46:10Z", []byte{}})

	out, err := h.run(reconcile.RunOptions{Limit: -1, DryRun: false})
	if err != nil {
		t.Fatalf("scenario F run: %v", err)
	}
	if len(out.Successes) != 0 {
		t.Errorf("scenario F: got %d successes, want 0", len(out.Successes))
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("scenario F: got %d warnings, want 1 (errors=%v)", len(out.Warnings), out.Errors)
	}

	rec := h.recordByDatasetID(file10)
	if rec == nil {
		t.Fatalf("scenario F: no record persisted for %s", file10)
	}
	if rec.Status != metadatastore.StatusCorrupted {
		t.Errorf("scenario F: status = %s, want CORRUPTED", rec.Status)
	}
	if rec.ErrorMessage == "" {
		t.Errorf("scenario F: expected a populated error message")
	}
	h.requireFileAbsent(file10)

	downloadEntries, err := os.ReadDir(h.def.Output.DownloadDir)
	if err != nil {
		t.Fatalf("read download dir: %v", err)
	}
	if len(downloadEntries) != 0 {
		t.Errorf("scenario F: temp download directory not cleaned up: %v", downloadEntries)
	}
}

// TestReconcileLimitZero verifies that limit=0 skips the definition
// entirely: no catalogue fetch (the catalogue URL is deliberately left
// broken), no metadata write.
func TestReconcileLimitZero(t *testing.T) {
	h := newHarness(t)
	// An unreachable catalogue source: if Run so much as attempted a
	// fetch, this would surface as an error.
	h.def.Sources = []definition.CatalogueSource{{CatalogueURL: "http://127.0.0.1:1/catalog.xml"}}

	out, err := h.run(reconcile.RunOptions{Limit: 0, DryRun: false})
	if err != nil {
		t.Fatalf("limit=0 run: %v", err)
	}
	if !out.IsEmpty() {
		t.Errorf("limit=0: expected an empty summary, got %+v", out)
	}

	records, err := h.store.List(context.Background(), h.def.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("limit=0: expected no metadata written, got %d records", len(records))
	}
}

// TestReconcileLimitQuotaExemption shows that a verify-present outcome and
// a content-unchanged-after-download outcome never consume limit quota:
// with limit=1 and both kinds of non-consuming outcome ahead of a
// genuinely new file, exactly one success (the new file) is recorded.
func TestReconcileLimitQuotaExemption(t *testing.T) {
	h := seedScenarioA(t)

	h.fixture.set(
		catalogFile{file10, "2018-11-05T12:46:10Z", content10v1}, // verify-present, doesn't consume quota
		catalogFile{file11, "2018-12-02T14:05:34Z", content11v1}, // verify-present, doesn't consume quota
		catalogFile{file12, "2018-12-10T08:52:59Z", content12v1}, // verify-present, doesn't consume quota
		catalogFile{file01, "2019-01-20T01:09:58Z", content01v1}, // content-unchanged, doesn't consume quota
		catalogFile{file02, "2019-01-20T02:09:58Z", content02v1}, // genuinely new, consumes the one unit of quota
	)

	out, err := h.run(reconcile.RunOptions{Limit: 1, DryRun: false})
	if err != nil {
		t.Fatalf("quota exemption run: %v", err)
	}
	if len(out.Successes) != 1 {
		t.Fatalf("quota exemption: got %d successes, want exactly 1", len(out.Successes))
	}
	if out.Successes[0].DatasetID != file02 {
		t.Errorf("quota exemption: success was %s, want %s", out.Successes[0].DatasetID, file02)
	}
	h.requireFileContent(file02, content02v1)
}

// TestReconcileIdempotentRoundTrip checks spec's round-trip invariant: two
// consecutive runs over a stable catalogue and stable sink produce
// identical persisted state, and the second run has zero successes.
func TestReconcileIdempotentRoundTrip(t *testing.T) {
	h := seedScenarioA(t)

	before, err := h.store.List(context.Background(), h.def.ID)
	if err != nil {
		t.Fatalf("list before second run: %v", err)
	}

	out, err := h.run(reconcile.RunOptions{Limit: -1, DryRun: false})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(out.Successes) != 0 {
		t.Errorf("second run: got %d successes, want 0", len(out.Successes))
	}

	after, err := h.store.List(context.Background(), h.def.ID)
	if err != nil {
		t.Fatalf("list after second run: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("second run changed record count: before=%d after=%d", len(before), len(after))
	}
	byID := make(map[string]*metadatastore.DatasetMetadata, len(before))
	for _, r := range before {
		byID[r.DatasetID] = r
	}
	for _, r := range after {
		prior, ok := byID[r.DatasetID]
		if !ok {
			t.Fatalf("second run introduced unexpected record %s", r.DatasetID)
		}
		if r.Checksum != prior.Checksum || r.Status != prior.Status || r.LastModifiedMs != prior.LastModifiedMs {
			t.Errorf("second run changed persisted state for %s: before=%+v after=%+v", r.DatasetID, prior, r)
		}
	}
}
