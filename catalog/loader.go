package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aims-ereefs/thredds-mirror/definition"
)

// Loader resolves a Definition's CatalogueSources into DatasetEntry values.
// One Loader is constructed per definition per run (NewLoader), and it
// memoizes the parsed form of each source URL on the instance for that
// run's lifetime — ported verbatim from original_source's
// NetCDFDownloadManager.catalogues field, per spec.md DESIGN NOTES §9. A
// Loader must never be reused across runs or shared between definitions.
type Loader struct {
	httpClient *http.Client
	logger     *zap.Logger
	parsed     map[string]*threddsCatalog // source URL -> parsed catalogue, memoized for this run
}

// NewLoader constructs a fresh, per-run Loader. timeout overrides the
// default 5-minute catalogue fetch timeout (spec.md §4.1); pass 0 for the
// default.
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	return &Loader{
		httpClient: newHTTPClient(timeout),
		logger:     logger,
		parsed:     make(map[string]*threddsCatalog),
	}
}

// Load fetches and parses every CatalogueSource of def, admits datasets
// per the definition's (or source's) filename filter, and returns the
// flattened {datasetId -> DatasetEntry} mapping. On id collision across
// sources, later sources overwrite earlier ones, per spec.md §4.1 — def.Sources
// is walked in order and the map write simply happens last-wins.
//
// A source that fails to fetch or parse is skipped with a warning (logged,
// not returned as an error): this is non-fatal to the run, per spec.md
// §4.1/§7. If no source yields a single dataset, ErrNoSuitableCatalogue is
// returned so the caller can end the definition's run.
func (l *Loader) Load(ctx context.Context, def *definition.Definition) (map[string]DatasetEntry, error) {
	result := make(map[string]DatasetEntry)
	anyDatasets := false

	for _, src := range def.Sources {
		cat, err := l.fetchAndParse(ctx, src.CatalogueURL)
		if err != nil {
			l.logger.Warn("skipping unreachable or unparseable catalogue source",
				zap.String("definitionId", def.ID),
				zap.String("catalogueUrl", src.CatalogueURL),
				zap.Error(err))
			continue
		}

		entries := admittedEntries(def, src, cat)
		for _, e := range entries {
			result[e.DatasetID] = e
			anyDatasets = true
		}
	}

	if !anyDatasets {
		return nil, ErrNoSuitableCatalogue
	}
	return result, nil
}

// ErrNoSuitableCatalogue is returned by Load when every CatalogueSource of
// a definition failed or yielded zero datasets, per spec.md §4.1 ("the
// whole definition is reported as 'no suitable catalogue URL'").
var ErrNoSuitableCatalogue = fmt.Errorf("catalog: no suitable catalogue URL yielded any dataset")

func (l *Loader) fetchAndParse(ctx context.Context, sourceURL string) (*threddsCatalog, error) {
	if cached, ok := l.parsed[sourceURL]; ok {
		return cached, nil
	}

	body, err := l.fetchBody(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var cat threddsCatalog
	if err := xml.NewDecoder(body).Decode(&cat); err != nil {
		return nil, fmt.Errorf("parse catalogue %s: %w", sourceURL, err)
	}

	l.parsed[sourceURL] = &cat
	return &cat, nil
}

func (l *Loader) fetchBody(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalogue URL %s: %w", sourceURL, err)
	}

	if u.Scheme == "file" || u.Scheme == "" {
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, fmt.Errorf("open local catalogue %s: %w", u.Path, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalogue %s: %w", sourceURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch catalogue %s: status %d", sourceURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// admittedEntries walks the full dataset tree of cat (nested datasets
// included, per spec.md §4.1 "Recursion") and returns the DatasetEntry
// values admitted by def's selection rule (or src's per-source override).
func admittedEntries(def *definition.Definition, src definition.CatalogueSource, cat *threddsCatalog) []DatasetEntry {
	services := flattenServices(cat.Services)
	var out []DatasetEntry
	var walk func(ds []threddsDataset)
	walk = func(ds []threddsDataset) {
		for _, d := range ds {
			accessURL, ok := resolveHTTPFileServerAccess(d, services, src.CatalogueURL)
			if ok && d.URLPath != "" {
				filename := lastPathSegment(d.URLPath)
				if def.Admits(src, filename) {
					out = append(out, DatasetEntry{
						DatasetID:      datasetID(d),
						URLPath:        d.URLPath,
						LastModifiedMs: parseDatasetLastModified(d),
						SizeBytes:      parseDatasetSize(d),
						AccessURL:      accessURL,
						Source:         src,
					})
				}
			}
			if len(d.Datasets) > 0 {
				walk(d.Datasets)
			}
		}
	}
	walk(cat.Datasets)

	sort.Slice(out, func(i, j int) bool { return out[i].DatasetID < out[j].DatasetID })
	return out
}

func datasetID(d threddsDataset) string {
	if d.ID != "" {
		return d.ID
	}
	return d.URLPath
}

func flattenServices(services []threddsService) map[string]threddsService {
	m := make(map[string]threddsService)
	var walk func([]threddsService)
	walk = func(ss []threddsService) {
		for _, s := range ss {
			m[s.Name] = s
			if len(s.Services) > 0 {
				walk(s.Services)
			}
		}
	}
	walk(services)
	return m
}

// resolveHTTPFileServerAccess finds the dataset's HTTPServer access
// element, if any, and resolves it to an absolute URL against the
// catalogue's own URL (access.base may be a relative path). A dataset is
// only admitted if it carries an access endpoint of this type, per
// spec.md §4.1.
func resolveHTTPFileServerAccess(d threddsDataset, services map[string]threddsService, catalogURL string) (string, bool) {
	for _, a := range d.Access {
		svc, ok := services[a.ServiceName]
		if !ok || svc.ServiceType != httpFileServerType {
			continue
		}
		abs, err := resolveURL(catalogURL, svc.Base, a.URLPath)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}

func resolveURL(catalogURL, base, urlPath string) (string, error) {
	joined := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(urlPath, "/")
	u, err := url.Parse(joined)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	catU, err := url.Parse(catalogURL)
	if err != nil {
		return "", err
	}
	return catU.ResolveReference(u).String(), nil
}

func lastPathSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func parseDatasetLastModified(d threddsDataset) int64 {
	for _, dt := range d.Dates {
		if dt.Type == "modified" || dt.Type == "" {
			if ms, err := parseThreddsTime(strings.TrimSpace(dt.Value)); err == nil {
				return ms
			}
		}
	}
	return 0
}

func parseThreddsTime(v string) (int64, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised timestamp %q", v)
}

func parseDatasetSize(d threddsDataset) int64 {
	if len(d.Sizes) == 0 {
		return 0
	}
	size := d.Sizes[0]
	v, err := strconv.ParseFloat(strings.TrimSpace(size.Value), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(size.Units) {
	case "kbytes", "kb":
		return int64(v * 1024)
	case "mbytes", "mb":
		return int64(v * 1024 * 1024)
	case "gbytes", "gb":
		return int64(v * 1024 * 1024 * 1024)
	default:
		return int64(v)
	}
}
