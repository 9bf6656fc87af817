package main

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/charts"
	"github.com/vanboompow/efb-212-sub001/internal/config"
	"github.com/vanboompow/efb-212-sub001/internal/fetcher"
	"github.com/vanboompow/efb-212-sub001/internal/geoindex"
	"github.com/vanboompow/efb-212-sub001/internal/metrics"
	"github.com/vanboompow/efb-212-sub001/internal/resilience"
	"github.com/vanboompow/efb-212-sub001/internal/store"
	"github.com/vanboompow/efb-212-sub001/internal/weather"
)

// appEnv holds the long-lived services a command needs. Each is built
// once here and injected into its consumers.
type appEnv struct {
	Store    store.Store
	Fetcher  *fetcher.Client
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Clock    clock.Clock
	FS       afero.Fs

	chartMgr *charts.Manager
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.chartMgr != nil {
		e.chartMgr.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens and migrates the store and
// builds the fetcher. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, storeConfig(cfg.Store))
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	fs := afero.NewOsFs()

	return &appEnv{
		Store:    st,
		Fetcher:  newFetcher(cfg, fs, m),
		Metrics:  m,
		Registry: reg,
		Clock:    clock.New(),
		FS:       fs,
	}, nil
}

func storeConfig(c config.StoreConfig) store.Config {
	return store.Config{Driver: c.Driver, DatabaseURL: c.DatabaseURL, SQLitePath: c.SQLitePath}
}

func newFetcher(c *config.Config, fs afero.Fs, m *metrics.Metrics) *fetcher.Client {
	retry := resilience.FromRetryConfig(c.Fetch.MaxRetries+1, c.Fetch.InitialBackoffMS, c.Fetch.MaxBackoffMS)
	return fetcher.New(fetcher.Options{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    c.Fetch.Timeout(),
		RatePerSec: c.Fetch.RatePerSec,
		Retry:      retry,
		Breaker:    resilience.FromCircuitConfig(c.Fetch.BreakerThreshold, c.Fetch.BreakerResetSecs),
		METARURL:   c.Weather.BaseURL,
		FS:         fs,
		OnResult:   m.Upstream,
	})
}

func (e *appEnv) weatherCache() (*weather.Cache, error) {
	return weather.New(e.Store, e.Fetcher, e.Clock, weather.Options{
		MaxEntries:         cfg.Weather.MaxEntries,
		RefreshConcurrency: cfg.Weather.RefreshConcurrency,
		FetchTimeout:       cfg.Weather.Timeout(),
		Metrics:            e.Metrics,
	})
}

func (e *appEnv) catalogSource() charts.CatalogSource {
	if cfg.Charts.CatalogURL != "" {
		return charts.RemoteCatalog{Fetcher: e.Fetcher, URL: cfg.Charts.CatalogURL}
	}
	return charts.YAMLCatalog{FS: e.FS, Path: cfg.Charts.CatalogPath}
}

// chartManager builds the manager and loads the catalog. A catalog
// failure served from the snapshot is logged, not returned.
func (e *appEnv) chartManager(ctx context.Context) (*charts.Manager, error) {
	if e.chartMgr != nil {
		return e.chartMgr, nil
	}
	m := charts.New(e.Store, e.catalogSource(), e.Fetcher, e.FS, e.Clock, charts.Options{
		MaxConcurrentDownloads: cfg.Charts.MaxConcurrentDownloads,
		ChartDir:               cfg.Charts.Dir,
		Metrics:                e.Metrics,
	})
	regions, err := m.LoadCatalog(ctx)
	if err != nil {
		if regions == nil {
			m.Close()
			return nil, err
		}
		zap.L().Warn("chart catalog unavailable, using last snapshot", zap.Error(err))
	}
	e.chartMgr = m
	return m, nil
}

func (e *appEnv) geoIndex(ctx context.Context) (*geoindex.Index, error) {
	idx, err := geoindex.Load(ctx, e.Store, geoindex.Options{Strategy: cfg.Index.Strategy})
	if err != nil {
		return nil, err
	}
	st := idx.Stats()
	zap.L().Info("geoindex built",
		zap.String("strategy", st.Strategy),
		zap.Int("indexed", st.Indexed),
		zap.Int("skipped", st.Skipped),
	)
	return idx, nil
}
