package charts

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// CatalogSource supplies the list of chart regions.
type CatalogSource interface {
	Regions(ctx context.Context) ([]model.ChartRegion, error)
}

type catalogFile struct {
	Regions []model.ChartRegion `yaml:"regions" json:"regions"`
}

// YAMLCatalog reads a static catalog file:
//
//	regions:
//	  - id: SEA
//	    name: Seattle Sectional
//	    effective_date: 2025-10-02
//	    expiration_date: 2025-11-27
//	    file_size_bytes: 58720256
//	    url: https://aeronav.faa.gov/visual/10-02-2025/sectional-files/Seattle.zip
type YAMLCatalog struct {
	FS   afero.Fs
	Path string
}

// Regions parses the catalog file.
func (c YAMLCatalog) Regions(_ context.Context) ([]model.ChartRegion, error) {
	data, err := afero.ReadFile(c.FS, c.Path)
	if err != nil {
		return nil, efberr.Wrap(efberr.FetchFailed, "charts: read catalog", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, efberr.Wrap(efberr.InvalidInput, "charts: parse catalog", eris.Wrapf(err, "parse %s", c.Path))
	}
	return f.Regions, nil
}

// JSONFetcher is what RemoteCatalog needs from the network client.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, v any) error
}

// RemoteCatalog fetches {"regions": [...]} from a URL.
type RemoteCatalog struct {
	Fetcher JSONFetcher
	URL     string
}

// Regions fetches and decodes the remote catalog.
func (c RemoteCatalog) Regions(ctx context.Context) ([]model.ChartRegion, error) {
	var f catalogFile
	if err := c.Fetcher.FetchJSON(ctx, c.URL, &f); err != nil {
		return nil, err
	}
	return f.Regions, nil
}
