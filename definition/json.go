package definition

import "encoding/json"

// wireDefinition mirrors the on-disk/DB JSON shape for a DownloadDefinition,
// per the field names the ingestion pipeline has always used: `_id`,
// `catalogueUrls`, a `files`/`filenameRegex` filter, and an `output` block.
type wireDefinition struct {
	ID             string             `json:"_id"`
	Enabled        bool               `json:"enabled"`
	CatalogueURLs  []wireSource       `json:"catalogueUrls"`
	Files          []string           `json:"files,omitempty"`
	FilenameRegexp string             `json:"filenameRegex,omitempty"`
	Output         wireOutput         `json:"output"`
}

type wireSource struct {
	CatalogueURL   string   `json:"catalogueUrl"`
	SubDirectory   string   `json:"subDirectory,omitempty"`
	Files          []string `json:"files,omitempty"`
	FilenameRegexp string   `json:"filenameRegex,omitempty"`
}

type wireOutput struct {
	Type        string `json:"type"`
	Destination string `json:"destination"`
	DownloadDir string `json:"downloadDir"`
}

// UnmarshalJSON decodes a Definition from its wire representation and
// compiles its filename filter.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var w wireDefinition
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	sources := make([]CatalogueSource, 0, len(w.CatalogueURLs))
	for _, s := range w.CatalogueURLs {
		sources = append(sources, CatalogueSource{
			CatalogueURL:   s.CatalogueURL,
			SubDirectory:   s.SubDirectory,
			Files:          s.Files,
			FilenameRegexp: s.FilenameRegexp,
		})
	}

	*d = Definition{
		ID:             w.ID,
		Enabled:        w.Enabled,
		Sources:        sources,
		Files:          w.Files,
		FilenameRegexp: w.FilenameRegexp,
		Output: Output{
			Type:        SinkType(w.Output.Type),
			Destination: w.Output.Destination,
			DownloadDir: w.Output.DownloadDir,
		},
	}
	return d.Compile()
}

// MarshalJSON encodes a Definition back to its wire representation.
func (d Definition) MarshalJSON() ([]byte, error) {
	sources := make([]wireSource, 0, len(d.Sources))
	for _, s := range d.Sources {
		sources = append(sources, wireSource{
			CatalogueURL:   s.CatalogueURL,
			SubDirectory:   s.SubDirectory,
			Files:          s.Files,
			FilenameRegexp: s.FilenameRegexp,
		})
	}

	return json.Marshal(wireDefinition{
		ID:             d.ID,
		Enabled:        d.Enabled,
		CatalogueURLs:  sources,
		Files:          d.Files,
		FilenameRegexp: d.FilenameRegexp,
		Output: wireOutput{
			Type:        string(d.Output.Type),
			Destination: d.Output.Destination,
			DownloadDir: d.Output.DownloadDir,
		},
	})
}
