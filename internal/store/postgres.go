package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/vanboompow/efb-212-sub001/internal/db"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_airport":        `SELECT icao, name, lat, lon, elevation_ft FROM airports WHERE icao = $1`,
	"get_cached_weather": `SELECT station_id, raw_metar, flight_category, fetched_at, observed_at FROM weather_cache WHERE station_id = $1`,
	"put_cached_weather": putWeatherSQL,
}

const putWeatherSQL = `INSERT INTO weather_cache (station_id, raw_metar, flight_category, fetched_at, observed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (station_id) DO UPDATE SET raw_metar = EXCLUDED.raw_metar,
flight_category = EXCLUDED.flight_category, fetched_at = EXCLUDED.fetched_at, observed_at = EXCLUDED.observed_at
WHERE EXCLUDED.fetched_at >= weather_cache.fetched_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, unavailable("postgres: parse config", err)
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, unavailable("postgres: create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("postgres: ping", err)
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS airports (
	icao         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	search_name  TEXT NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lon          DOUBLE PRECISION NOT NULL,
	elevation_ft DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_airports_search_name ON airports(search_name);

CREATE TABLE IF NOT EXISTS weather_cache (
	station_id      TEXT PRIMARY KEY,
	raw_metar       TEXT,
	flight_category TEXT NOT NULL,
	fetched_at      TIMESTAMPTZ NOT NULL,
	observed_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS chart_paths (
	region_id  TEXT PRIMARY KEY,
	local_path TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chart_catalog_snapshot (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	regions  JSONB NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return unavailable("postgres: ping", err)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return unavailable("postgres: migrate", err)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Airports

func (s *PostgresStore) GetAirport(ctx context.Context, icao string) (*model.Airport, error) {
	icao = model.NormalizeICAO(icao)
	a, err := scanAirport(s.pool.QueryRow(ctx,
		`SELECT icao, name, lat, lon, elevation_ft FROM airports WHERE icao = $1`, icao))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, airportNotFound("postgres: get airport", icao)
	}
	if err != nil {
		return nil, unavailable("postgres: get airport", err)
	}
	return a, nil
}

func (s *PostgresStore) SearchAirports(ctx context.Context, query string, limit int) ([]model.Airport, error) {
	q := FoldName(query)
	if q == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT icao, name, lat, lon, elevation_ft FROM airports
		 WHERE lower(icao) LIKE $1 OR search_name LIKE $2
		 ORDER BY CASE WHEN lower(icao) = $3 THEN 0 WHEN lower(icao) LIKE $1 THEN 1 ELSE 2 END, icao
		 LIMIT $4`,
		q+"%", "%"+q+"%", q, clampLimit(limit),
	)
	if err != nil {
		return nil, unavailable("postgres: search airports", err)
	}
	return collectPgAirports(rows, "postgres: search airports")
}

func (s *PostgresStore) ListAirports(ctx context.Context) ([]model.Airport, error) {
	rows, err := s.pool.Query(ctx, `SELECT icao, name, lat, lon, elevation_ft FROM airports ORDER BY icao`)
	if err != nil {
		return nil, unavailable("postgres: list airports", err)
	}
	return collectPgAirports(rows, "postgres: list airports")
}

var airportUpsert = db.UpsertConfig{
	Table:        "airports",
	Columns:      []string{"icao", "name", "search_name", "lat", "lon", "elevation_ft"},
	ConflictKeys: []string{"icao"},
}

func (s *PostgresStore) UpsertAirports(ctx context.Context, airports []model.Airport) (int64, error) {
	rows := make([][]any, 0, len(airports))
	for _, a := range airports {
		rows = append(rows, []any{
			model.NormalizeICAO(a.ICAO), a.Name, FoldName(a.Name),
			a.Coordinate.Lat, a.Coordinate.Lon, a.ElevationFt,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, airportUpsert, rows)
	if err != nil {
		return 0, unavailable("postgres: upsert airports", err)
	}
	return n, nil
}

// Weather

func (s *PostgresStore) GetCachedWeather(ctx context.Context, stationID string) (*model.WeatherObservation, error) {
	var (
		obs      model.WeatherObservation
		raw      *string
		cat      string
		observed *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT station_id, raw_metar, flight_category, fetched_at, observed_at FROM weather_cache WHERE station_id = $1`,
		model.NormalizeICAO(stationID),
	).Scan(&obs.StationID, &raw, &cat, &obs.FetchedAt, &observed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("postgres: get cached weather", err)
	}
	obs.RawMETAR = raw
	obs.FlightCategory = model.FlightCategory(cat)
	if observed != nil {
		obs.ObservedAt = *observed
	}
	return &obs, nil
}

func (s *PostgresStore) PutCachedWeather(ctx context.Context, obs model.WeatherObservation) error {
	var observed *time.Time
	if !obs.ObservedAt.IsZero() {
		t := obs.ObservedAt.UTC()
		observed = &t
	}
	_, err := s.pool.Exec(ctx, putWeatherSQL,
		model.NormalizeICAO(obs.StationID), obs.RawMETAR, string(obs.FlightCategory), obs.FetchedAt.UTC(), observed)
	return unavailable("postgres: put cached weather", err)
}

func (s *PostgresStore) ClearWeatherCache(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM weather_cache`)
	return unavailable("postgres: clear weather cache", err)
}

// Charts

func (s *PostgresStore) ListDownloadedChartPaths(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT region_id, local_path FROM chart_paths`)
	if err != nil {
		return nil, unavailable("postgres: list chart paths", err)
	}
	defer rows.Close()

	paths := make(map[string]string)
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, unavailable("postgres: list chart paths", err)
		}
		paths[id] = path
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("postgres: list chart paths", err)
	}
	return paths, nil
}

func (s *PostgresStore) SetChartPath(ctx context.Context, regionID, path string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chart_paths (region_id, local_path, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (region_id) DO UPDATE SET local_path = EXCLUDED.local_path, updated_at = now()`,
		regionID, path,
	)
	return unavailable("postgres: set chart path", err)
}

func (s *PostgresStore) ClearChartPath(ctx context.Context, regionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chart_paths WHERE region_id = $1`, regionID)
	return unavailable("postgres: clear chart path", err)
}

func (s *PostgresStore) SaveCatalogSnapshot(ctx context.Context, regions []model.ChartRegion) error {
	data, err := json.Marshal(regions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal catalog snapshot")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO chart_catalog_snapshot (id, regions, saved_at) VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE SET regions = EXCLUDED.regions, saved_at = now()`,
		data,
	)
	return unavailable("postgres: save catalog snapshot", err)
}

func (s *PostgresStore) LoadCatalogSnapshot(ctx context.Context) ([]model.ChartRegion, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT regions FROM chart_catalog_snapshot WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("postgres: load catalog snapshot", err)
	}
	return decodeSnapshot(data)
}

// collectPgAirports drains rows, skipping airports with a NULL
// coordinate so one bad row never hides the rest of the table.
func collectPgAirports(rows pgx.Rows, op string) ([]model.Airport, error) {
	defer rows.Close()
	var (
		out     []model.Airport
		skipped int
		lastErr error
	)
	for rows.Next() {
		var (
			a             model.Airport
			lat, lon, elv pgtype.Float8
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
		a.Coordinate.Lat, a.Coordinate.Lon = lat.Float64, lon.Float64
		a.ElevationFt = elv.Float64
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	logSkippedAirports(op, skipped, lastErr)
	return out, nil
}
