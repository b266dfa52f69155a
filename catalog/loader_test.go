package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/definition"
)

const sampleCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<catalog>
  <service name="http" serviceType="HTTPServer" base="/data/"/>
  <service name="compound" serviceType="Compound" base="">
    <service name="inner" serviceType="HTTPServer" base="/data/"/>
  </service>
  <dataset name="top" urlPath="top-level.nc">
    <date type="modified">2018-11-05T12:46:10Z</date>
    <dataSize units="Mbytes">12.5</dataSize>
    <access serviceName="http" urlPath="top-level.nc"/>
  </dataset>
  <dataset name="group">
    <dataset name="nested" ID="explicit-id" urlPath="nested/child.nc">
      <date type="modified">2019-01-19T01:09:58Z</date>
      <access serviceName="http" urlPath="nested/child.nc"/>
    </dataset>
  </dataset>
  <dataset name="no-access" urlPath="orphan.nc">
    <date type="modified">2019-01-19T01:09:58Z</date>
  </dataset>
</catalog>`

func newSampleServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadAdmitsNestedDatasetsAndResolvesAccessURLs(t *testing.T) {
	srv := newSampleServer(t)
	def := &definition.Definition{
		ID:      "def-1",
		Enabled: true,
		Sources: []definition.CatalogueSource{{CatalogueURL: srv.URL + "/catalog.xml"}},
	}
	if err := def.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	loader := NewLoader(time.Minute, zap.NewNop())
	entries, err := loader.Load(context.Background(), def)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := entries["orphan.nc"]; ok {
		t.Error("a dataset with no HTTPServer access element should not be admitted")
	}

	top, ok := entries["top-level.nc"]
	if !ok {
		t.Fatal("expected top-level.nc to be admitted")
	}
	if top.AccessURL != srv.URL+"/data/top-level.nc" {
		t.Errorf("top.AccessURL = %s, want %s", top.AccessURL, srv.URL+"/data/top-level.nc")
	}
	if top.SizeBytes != int64(12.5*1024*1024) {
		t.Errorf("top.SizeBytes = %d, want %d", top.SizeBytes, int64(12.5*1024*1024))
	}

	nested, ok := entries["explicit-id"]
	if !ok {
		t.Fatal("expected the nested dataset to be admitted under its explicit ID")
	}
	if nested.Filename() != "child.nc" {
		t.Errorf("nested.Filename() = %s, want child.nc", nested.Filename())
	}
}

func TestLoadFallsBackToURLPathWhenIDAttributeAbsent(t *testing.T) {
	srv := newSampleServer(t)
	def := &definition.Definition{
		ID:      "def-1",
		Enabled: true,
		Sources: []definition.CatalogueSource{{CatalogueURL: srv.URL + "/catalog.xml"}},
	}
	if err := def.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	loader := NewLoader(time.Minute, zap.NewNop())
	entries, err := loader.Load(context.Background(), def)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entry, ok := entries["top-level.nc"]
	if !ok {
		t.Fatal("expected the dataset id to fall back to its urlPath when ID is absent")
	}
	if entry.DatasetID != "top-level.nc" {
		t.Errorf("DatasetID = %s, want top-level.nc", entry.DatasetID)
	}
}

func TestLoadReturnsErrNoSuitableCatalogueWhenEverySourceFails(t *testing.T) {
	def := &definition.Definition{
		ID:      "def-1",
		Enabled: true,
		Sources: []definition.CatalogueSource{{CatalogueURL: "http://127.0.0.1:1/catalog.xml"}},
	}
	if err := def.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	loader := NewLoader(time.Minute, zap.NewNop())
	_, err := loader.Load(context.Background(), def)
	if err != ErrNoSuitableCatalogue {
		t.Errorf("err = %v, want ErrNoSuitableCatalogue", err)
	}
}

func TestLoadAppliesDefinitionFilenameFilter(t *testing.T) {
	srv := newSampleServer(t)
	def := &definition.Definition{
		ID:             "def-1",
		Enabled:        true,
		Sources:        []definition.CatalogueSource{{CatalogueURL: srv.URL + "/catalog.xml"}},
		FilenameRegexp: `^top-level\.nc$`,
	}
	if err := def.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	loader := NewLoader(time.Minute, zap.NewNop())
	entries, err := loader.Load(context.Background(), def)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (only top-level.nc matches the filter)", len(entries))
	}
	if _, ok := entries["top-level.nc"]; !ok {
		t.Error("expected top-level.nc to survive the filter")
	}
}
