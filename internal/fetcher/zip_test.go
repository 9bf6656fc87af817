package fetcher

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestZIP builds an archive from ordered name/content pairs and stores
// it at /in/test.zip on a fresh in-memory filesystem.
func writeTestZIP(t *testing.T, entries ...string) afero.Fs {
	t.Helper()
	require.Zero(t, len(entries)%2)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i < len(entries); i += 2 {
		fw, err := w.Create(entries[i])
		require.NoError(t, err)
		_, err = fw.Write([]byte(entries[i+1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/test.zip", buf.Bytes(), 0o644))
	return fs
}

func TestExtractZIPExt(t *testing.T) {
	fs := writeTestZIP(t,
		"airports.csv", "ident,name",
		"readme.txt", "hello",
	)

	extracted, err := ExtractZIPExt(fs, "/in/test.zip", "/out", ".csv", ".txt")
	require.NoError(t, err)
	sort.Strings(extracted)
	assert.Equal(t, []string{filepath.Join("/out", "airports.csv"), filepath.Join("/out", "readme.txt")}, extracted)

	data, err := afero.ReadFile(fs, "/out/airports.csv")
	require.NoError(t, err)
	assert.Equal(t, "ident,name", string(data))
}

func TestExtractZIPExt_ShapefileMembers(t *testing.T) {
	fs := writeTestZIP(t,
		"Airports.shp", "shp",
		"Airports.SHX", "shx",
		"Airports.dbf", "dbf",
		"Airports.xml", "meta",
	)

	extracted, err := ExtractZIPExt(fs, "/in/test.zip", "/out", ".shp", ".shx", ".dbf")
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	exists, _ := afero.Exists(fs, "/out/Airports.xml")
	assert.False(t, exists)
}

func TestExtractZIPExt_ZipSlipPrevention(t *testing.T) {
	fs := writeTestZIP(t, "../../../etc/Airports.shp", "malicious")

	_, err := ExtractZIPExt(fs, "/in/test.zip", "/out", ".shp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIPExt_WithSubdirectory(t *testing.T) {
	fs := writeTestZIP(t,
		"subdir/", "",
		"subdir/data.txt", "nested content",
	)

	extracted, err := ExtractZIPExt(fs, "/in/test.zip", "/out", ".txt")
	require.NoError(t, err)
	assert.Len(t, extracted, 1)

	data, err := afero.ReadFile(fs, "/out/subdir/data.txt")
	require.NoError(t, err)
	assert.Equal(t, "nested content", string(data))
}

func TestExtractZIPExt_InvalidArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/bad.zip", []byte("this is not a zip"), 0o644))

	_, err := ExtractZIPExt(fs, "/in/bad.zip", "/out", ".shp")
	require.Error(t, err)
}

func TestExtractZIPExt_MissingArchive(t *testing.T) {
	_, err := ExtractZIPExt(afero.NewMemMapFs(), "/nope.zip", "/out", ".shp")
	require.Error(t, err)
}
