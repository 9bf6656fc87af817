package airportdata

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/fetcher"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

const defaultBatchSize = 1000

// Downloader fetches a remote file onto the importer's filesystem.
type Downloader interface {
	DownloadFile(ctx context.Context, rawURL, dest string, onProgress fetcher.ProgressFunc) (int64, error)
}

// Upserter writes airport rows, normally the store.
type Upserter interface {
	UpsertAirports(ctx context.Context, airports []model.Airport) (int64, error)
}

// Result reports one import run.
type Result struct {
	Stats
	Upserted int64 `json:"upserted"`
}

// Importer downloads, parses and upserts airport datasets.
type Importer struct {
	dl        Downloader
	store     Upserter
	fs        afero.Fs
	workDir   string
	batchSize int
	log       *zap.Logger
}

// NewImporter creates an importer that stages downloads under workDir on
// fsys. FAA shapefiles are opened by path, so ImportFAA needs fsys to be
// the OS filesystem.
func NewImporter(dl Downloader, store Upserter, fsys afero.Fs, workDir string) *Importer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Importer{
		dl:        dl,
		store:     store,
		fs:        fsys,
		workDir:   workDir,
		batchSize: defaultBatchSize,
		log:       zap.L().With(zap.String("component", "airportdata")),
	}
}

// ImportOurAirports loads an airports.csv from a URL or a local path.
func (im *Importer) ImportOurAirports(ctx context.Context, source string) (*Result, error) {
	local, err := im.stage(ctx, source, "airports.csv")
	if err != nil {
		return nil, err
	}
	f, err := im.fs.Open(local)
	if err != nil {
		return nil, efberr.Wrap(efberr.StorageUnavailable, "airportdata: open csv", err)
	}
	defer f.Close() //nolint:errcheck

	airports, stats, err := ParseOurAirports(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, efberr.Wrap(efberr.InvalidInput, "airportdata: ourairports", err)
	}
	return im.upsert(ctx, "ourairports", airports, stats)
}

// ImportFAA loads the FAA airports shapefile from a ZIP at a URL or local
// path.
func (im *Importer) ImportFAA(ctx context.Context, source string) (*Result, error) {
	if _, ok := im.fs.(*afero.OsFs); !ok {
		return nil, efberr.New(efberr.InvalidInput, "airportdata: faa", "shapefile import requires the OS filesystem")
	}
	local, err := im.stage(ctx, source, "airports.zip")
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(im.workDir, "faa")
	files, err := fetcher.ExtractZIPExt(im.fs, local, dir, ShapefileExts...)
	if err != nil {
		return nil, efberr.Wrap(efberr.InvalidInput, "airportdata: extract faa", err)
	}
	defer func() { _ = im.fs.RemoveAll(dir) }()

	var shpPath string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".shp") {
			shpPath = f
			break
		}
	}
	if shpPath == "" {
		return nil, efberr.New(efberr.InvalidInput, "airportdata: faa", "archive contains no .shp file")
	}

	airports, stats, err := ParseFAAShapefile(shpPath)
	if err != nil {
		return nil, efberr.Wrap(efberr.InvalidInput, "airportdata: faa", err)
	}
	return im.upsert(ctx, "faa", airports, stats)
}

// stage returns a local path for source, downloading it into the work
// directory when it is a URL.
func (im *Importer) stage(ctx context.Context, source, fallbackName string) (string, error) {
	if !strings.Contains(source, "://") {
		return source, nil
	}
	name := path.Base(strings.SplitN(source, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = fallbackName
	}
	dest := filepath.Join(im.workDir, name)
	n, err := im.dl.DownloadFile(ctx, source, dest, nil)
	if err != nil {
		return "", err
	}
	im.log.Info("downloaded airport dataset", zap.String("url", source), zap.Int64("bytes", n))
	return dest, nil
}

func (im *Importer) upsert(ctx context.Context, dataset string, airports []model.Airport, stats Stats) (*Result, error) {
	res := &Result{Stats: stats}
	for start := 0; start < len(airports); start += im.batchSize {
		end := min(start+im.batchSize, len(airports))
		n, err := im.store.UpsertAirports(ctx, airports[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "airportdata: upsert %s batch at %d", dataset, start)
		}
		res.Upserted += n
	}
	im.log.Info("airport import complete",
		zap.String("dataset", dataset),
		zap.Int("read", stats.Read),
		zap.Int("skipped", stats.Skipped),
		zap.Int64("upserted", res.Upserted),
	)
	return res, nil
}
