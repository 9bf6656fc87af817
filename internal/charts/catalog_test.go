package charts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

const catalogYAML = `regions:
  - id: SEA
    name: Seattle Sectional
    effective_date: 2025-10-02
    expiration_date: 2025-11-27
    file_size_bytes: 58720256
    url: https://aeronav.faa.gov/visual/10-02-2025/sectional-files/Seattle.zip
  - id: SFO
    name: San Francisco Sectional
    effective_date: 2025-10-02T09:00:00Z
    expiration_date: 2025-11-27T09:00:00Z
    file_size_bytes: 61865984
    url: ftp://aeronav.faa.gov/visual/10-02-2025/sectional-files/San_Francisco.zip
`

func TestYAMLCatalog(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/efb/charts.yaml", []byte(catalogYAML), 0o644))

	regions, err := YAMLCatalog{FS: fs, Path: "/etc/efb/charts.yaml"}.Regions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, "SEA", regions[0].ID)
	assert.Equal(t, "Seattle Sectional", regions[0].Name)
	assert.Equal(t, time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC), regions[0].EffectiveDate.UTC())
	assert.Equal(t, int64(58720256), regions[0].FileSizeBytes)
	assert.Nil(t, regions[0].LocalPath)
	assert.Equal(t, time.Date(2025, 11, 27, 9, 0, 0, 0, time.UTC), regions[1].ExpirationDate.UTC())
}

func TestYAMLCatalog_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := YAMLCatalog{FS: fs, Path: "/missing.yaml"}.Regions(context.Background())
	assert.True(t, efberr.IsFetchFailed(err))

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("regions: [unterminated"), 0o644))
	_, err = YAMLCatalog{FS: fs, Path: "/bad.yaml"}.Regions(context.Background())
	assert.True(t, efberr.IsInvalidInput(err))
}

type fakeJSON struct {
	body string
	err  error
	url  string
}

func (f *fakeJSON) FetchJSON(_ context.Context, url string, v any) error {
	f.url = url
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.body), v)
}

func TestRemoteCatalog(t *testing.T) {
	f := &fakeJSON{body: `{"regions":[{"id":"SEA","name":"Seattle","effective_date":"2025-10-02T09:00:00Z","expiration_date":"2025-11-27T09:00:00Z","file_size_bytes":10,"url":"https://x/sea.zip"}]}`}
	regions, err := RemoteCatalog{Fetcher: f, URL: "https://catalog.example/regions.json"}.Regions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "https://catalog.example/regions.json", f.url)
	assert.Equal(t, []model.ChartRegion{{
		ID:             "SEA",
		Name:           "Seattle",
		EffectiveDate:  time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2025, 11, 27, 9, 0, 0, 0, time.UTC),
		FileSizeBytes:  10,
		URL:            "https://x/sea.zip",
	}}, regions)

	f.err = efberr.ErrTimeout
	_, err = RemoteCatalog{Fetcher: f, URL: "u"}.Regions(context.Background())
	assert.ErrorIs(t, err, efberr.ErrTimeout)
}
