// Package store persists airports, cached weather and chart bookkeeping.
//
// Two backends implement Store: SQLite for the on-device database and
// Postgres for ground or fleet deployments. Every backend failure is tagged
// efberr.StorageUnavailable; a missing airport is efberr.NotFound.
package store

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// Store defines the persistence interface for the caching layer.
type Store interface {
	// Airports
	GetAirport(ctx context.Context, icao string) (*model.Airport, error)
	SearchAirports(ctx context.Context, query string, limit int) ([]model.Airport, error)
	ListAirports(ctx context.Context) ([]model.Airport, error)
	UpsertAirports(ctx context.Context, airports []model.Airport) (int64, error)

	// Weather cache. GetCachedWeather returns nil, nil when absent.
	GetCachedWeather(ctx context.Context, stationID string) (*model.WeatherObservation, error)
	// PutCachedWeather replaces the stored entry unless it holds a newer FetchedAt.
	PutCachedWeather(ctx context.Context, obs model.WeatherObservation) error
	ClearWeatherCache(ctx context.Context) error

	// Charts
	ListDownloadedChartPaths(ctx context.Context) (map[string]string, error)
	SetChartPath(ctx context.Context, regionID, path string) error
	ClearChartPath(ctx context.Context, regionID string) error
	SaveCatalogSnapshot(ctx context.Context, regions []model.ChartRegion) error
	// LoadCatalogSnapshot returns nil, nil when no snapshot was ever saved.
	LoadCatalogSnapshot(ctx context.Context) ([]model.ChartRegion, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Config selects and configures a backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "efb.db"
		}
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// FoldName lower-cases s and strips combining marks so "Zürich" matches
// "zurich".
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func unavailable(op string, err error) error {
	return efberr.Wrap(efberr.StorageUnavailable, op, err)
}

// logSkippedAirports reports unreadable airport rows once per query.
func logSkippedAirports(op string, skipped int, lastErr error) {
	if skipped == 0 {
		return
	}
	fields := []zap.Field{zap.String("op", op), zap.Int("skipped", skipped)}
	if lastErr != nil {
		fields = append(fields, zap.NamedError("last_error", lastErr))
	}
	zap.L().Warn("store: skipped unreadable airport rows", fields...)
}

func airportNotFound(op, icao string) error {
	return efberr.New(efberr.NotFound, op, "airport "+icao+" not found")
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
