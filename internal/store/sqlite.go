package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("sqlite: open", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, unavailable("sqlite: open", eris.Wrapf(err, "exec %s", pragma))
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as unix nanoseconds so fetched_at comparisons in SQL
// are exact.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS airports (
	icao         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	search_name  TEXT NOT NULL,
	lat          REAL NOT NULL,
	lon          REAL NOT NULL,
	elevation_ft REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS weather_cache (
	station_id      TEXT PRIMARY KEY,
	raw_metar       TEXT,
	flight_category TEXT NOT NULL,
	fetched_at      INTEGER NOT NULL,
	observed_at     INTEGER
);

CREATE TABLE IF NOT EXISTS chart_paths (
	region_id  TEXT PRIMARY KEY,
	local_path TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chart_catalog_snapshot (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	regions  TEXT NOT NULL,
	saved_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_airports_search_name ON airports(search_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return unavailable("sqlite: migrate", err)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Airports

func (s *SQLiteStore) GetAirport(ctx context.Context, icao string) (*model.Airport, error) {
	icao = model.NormalizeICAO(icao)
	row := s.db.QueryRowContext(ctx,
		`SELECT icao, name, lat, lon, elevation_ft FROM airports WHERE icao = ?`, icao)
	a, err := scanAirport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, airportNotFound("sqlite: get airport", icao)
	}
	if err != nil {
		return nil, unavailable("sqlite: get airport", err)
	}
	return a, nil
}

func (s *SQLiteStore) SearchAirports(ctx context.Context, query string, limit int) ([]model.Airport, error) {
	q := FoldName(query)
	if q == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT icao, name, lat, lon, elevation_ft FROM airports
		 WHERE lower(icao) LIKE ? OR search_name LIKE ?
		 ORDER BY CASE WHEN lower(icao) = ? THEN 0 WHEN lower(icao) LIKE ? THEN 1 ELSE 2 END, icao
		 LIMIT ?`,
		q+"%", "%"+q+"%", q, q+"%", clampLimit(limit),
	)
	if err != nil {
		return nil, unavailable("sqlite: search airports", err)
	}
	return collectAirports(rows, "sqlite: search airports")
}

func (s *SQLiteStore) ListAirports(ctx context.Context) ([]model.Airport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT icao, name, lat, lon, elevation_ft FROM airports ORDER BY icao`)
	if err != nil {
		return nil, unavailable("sqlite: list airports", err)
	}
	return collectAirports(rows, "sqlite: list airports")
}

func (s *SQLiteStore) UpsertAirports(ctx context.Context, airports []model.Airport) (int64, error) {
	if len(airports) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("sqlite: upsert airports", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO airports (icao, name, search_name, lat, lon, elevation_ft) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(icao) DO UPDATE SET name = excluded.name, search_name = excluded.search_name,
		 lat = excluded.lat, lon = excluded.lon, elevation_ft = excluded.elevation_ft`)
	if err != nil {
		return 0, unavailable("sqlite: upsert airports", err)
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, a := range airports {
		icao := model.NormalizeICAO(a.ICAO)
		if _, err := stmt.ExecContext(ctx, icao, a.Name, FoldName(a.Name),
			a.Coordinate.Lat, a.Coordinate.Lon, a.ElevationFt); err != nil {
			return 0, unavailable("sqlite: upsert airports", eris.Wrapf(err, "airport %s", icao))
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("sqlite: upsert airports", err)
	}
	return n, nil
}

// Weather

func (s *SQLiteStore) GetCachedWeather(ctx context.Context, stationID string) (*model.WeatherObservation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT station_id, raw_metar, flight_category, fetched_at, observed_at
		 FROM weather_cache WHERE station_id = ?`, model.NormalizeICAO(stationID))

	var (
		obs        model.WeatherObservation
		raw        sql.NullString
		cat        string
		fetched    int64
		observedAt sql.NullInt64
	)
	err := row.Scan(&obs.StationID, &raw, &cat, &fetched, &observedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("sqlite: get cached weather", err)
	}
	if raw.Valid {
		obs.RawMETAR = &raw.String
	}
	obs.FlightCategory = model.FlightCategory(cat)
	obs.FetchedAt = fromNanos(fetched)
	if observedAt.Valid {
		obs.ObservedAt = fromNanos(observedAt.Int64)
	}
	return &obs, nil
}

func (s *SQLiteStore) PutCachedWeather(ctx context.Context, obs model.WeatherObservation) error {
	var observed sql.NullInt64
	if !obs.ObservedAt.IsZero() {
		observed = sql.NullInt64{Int64: obs.ObservedAt.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weather_cache (station_id, raw_metar, flight_category, fetched_at, observed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(station_id) DO UPDATE SET raw_metar = excluded.raw_metar,
		 flight_category = excluded.flight_category, fetched_at = excluded.fetched_at,
		 observed_at = excluded.observed_at
		 WHERE excluded.fetched_at >= weather_cache.fetched_at`,
		model.NormalizeICAO(obs.StationID), nullString(obs.RawMETAR), string(obs.FlightCategory),
		obs.FetchedAt.UnixNano(), observed,
	)
	return unavailable("sqlite: put cached weather", err)
}

func (s *SQLiteStore) ClearWeatherCache(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM weather_cache`)
	return unavailable("sqlite: clear weather cache", err)
}

// Charts

func (s *SQLiteStore) ListDownloadedChartPaths(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region_id, local_path FROM chart_paths`)
	if err != nil {
		return nil, unavailable("sqlite: list chart paths", err)
	}
	defer rows.Close() //nolint:errcheck

	paths := make(map[string]string)
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, unavailable("sqlite: list chart paths", err)
		}
		paths[id] = path
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sqlite: list chart paths", err)
	}
	return paths, nil
}

func (s *SQLiteStore) SetChartPath(ctx context.Context, regionID, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chart_paths (region_id, local_path, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(region_id) DO UPDATE SET local_path = excluded.local_path, updated_at = excluded.updated_at`,
		regionID, path, time.Now().UnixNano(),
	)
	return unavailable("sqlite: set chart path", err)
}

func (s *SQLiteStore) ClearChartPath(ctx context.Context, regionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chart_paths WHERE region_id = ?`, regionID)
	return unavailable("sqlite: clear chart path", err)
}

func (s *SQLiteStore) SaveCatalogSnapshot(ctx context.Context, regions []model.ChartRegion) error {
	data, err := json.Marshal(regions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal catalog snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chart_catalog_snapshot (id, regions, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET regions = excluded.regions, saved_at = excluded.saved_at`,
		string(data), time.Now().UnixNano(),
	)
	return unavailable("sqlite: save catalog snapshot", err)
}

func (s *SQLiteStore) LoadCatalogSnapshot(ctx context.Context) ([]model.ChartRegion, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT regions FROM chart_catalog_snapshot WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("sqlite: load catalog snapshot", err)
	}
	return decodeSnapshot([]byte(data))
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAirport(row scannable) (*model.Airport, error) {
	var a model.Airport
	var lat, lon float64
	if err := row.Scan(&a.ICAO, &a.Name, &lat, &lon, &a.ElevationFt); err != nil {
		return nil, err
	}
	a.Coordinate = geodesy.Coordinate{Lat: lat, Lon: lon}
	return &a, nil
}

// collectAirports drains rows, skipping any that cannot be read as an
// airport so one bad row never hides the rest of the table.
func collectAirports(rows *sql.Rows, op string) ([]model.Airport, error) {
	defer rows.Close() //nolint:errcheck
	var (
		out     []model.Airport
		skipped int
		lastErr error
	)
	for rows.Next() {
		var (
			a             model.Airport
			lat, lon, elv sql.NullFloat64
		)
		if err := rows.Scan(&a.ICAO, &a.Name, &lat, &lon, &elv); err != nil {
			skipped++
			lastErr = err
			continue
		}
		if !lat.Valid || !lon.Valid {
			skipped++
			continue
		}
		a.Coordinate = geodesy.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		a.ElevationFt = elv.Float64
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	logSkippedAirports(op, skipped, lastErr)
	return out, nil
}

func decodeSnapshot(data []byte) ([]model.ChartRegion, error) {
	var regions []model.ChartRegion
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, unavailable("store: decode catalog snapshot", err)
	}
	// Local paths are reconciled from chart_paths, never from the snapshot.
	for i := range regions {
		regions[i].LocalPath = nil
	}
	return regions, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
