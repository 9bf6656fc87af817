package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// ExtractZIPExt extracts into destDir on fsys only the entries whose extension (case-insensitive)
// is one of exts, such as the .shp/.shx/.dbf members of a shapefile bundle.
func ExtractZIPExt(fsys afero.Fs, zipPath, destDir string, exts ...string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}
	return extractMatching(fsys, zipPath, destDir, func(name string) bool {
		return want[strings.ToLower(filepath.Ext(name))]
	})
}

func extractMatching(fsys afero.Fs, zipPath, destDir string, keep func(string) bool) ([]string, error) {
	f, err := fsys.Open(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, eris.Wrap(err, "zip: stat archive")
	}
	r, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, eris.Wrap(err, "zip: read archive")
	}

	var extracted []string
	for _, zf := range r.File {
		if !zf.FileInfo().IsDir() && !keep(zf.Name) {
			continue
		}
		path, err := extractZIPEntry(fsys, zf, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// extractZIPEntry writes one entry under destDir. Returns "" for directories.
func extractZIPEntry(fsys afero.Fs, f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := fsys.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := fsys.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := fsys.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	return destPath, nil
}
