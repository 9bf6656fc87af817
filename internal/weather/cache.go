// Package weather is the offline-first METAR cache.
//
// Observations live in a bounded in-memory tier backed by the persistent
// store. Get never touches the network; Refresh only fetches when the
// cached entry is missing or old. Concurrent refreshes for one station
// share a single fetch, and an entry is only replaced by one fetched at
// the same time or later.
package weather

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/metrics"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// Store is the slice of the persistent store the cache needs.
type Store interface {
	GetCachedWeather(ctx context.Context, stationID string) (*model.WeatherObservation, error)
	PutCachedWeather(ctx context.Context, obs model.WeatherObservation) error
	ClearWeatherCache(ctx context.Context) error
}

// Fetcher retrieves the current observation for a station.
type Fetcher interface {
	FetchMETAR(ctx context.Context, stationID string) (*model.WeatherObservation, error)
}

// Options tunes the cache.
type Options struct {
	// MaxEntries bounds the in-memory tier. Default 512.
	MaxEntries int
	// RefreshConcurrency bounds RefreshMany. Default 4.
	RefreshConcurrency int
	// FetchTimeout bounds one shared METAR fetch. Default 30s.
	FetchTimeout time.Duration
	Metrics      *metrics.Metrics
}

// Cache is the weather cache service.
type Cache struct {
	store   Store
	fetcher Fetcher
	clock   clock.Clock
	opts    Options
	log     *zap.Logger

	mu    sync.Mutex
	mem   *lru.Cache[string, model.WeatherObservation]
	group singleflight.Group
}

// New builds a Cache. A nil clock uses the wall clock.
func New(store Store, fetcher Fetcher, clk clock.Clock, opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 512
	}
	if opts.RefreshConcurrency <= 0 {
		opts.RefreshConcurrency = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	mem, err := lru.New[string, model.WeatherObservation](opts.MaxEntries)
	if err != nil {
		return nil, eris.Wrap(err, "weather: create memory tier")
	}
	return &Cache{
		store:   store,
		fetcher: fetcher,
		clock:   clk,
		opts:    opts,
		log:     zap.L().With(zap.String("component", "weather")),
		mem:     mem,
	}, nil
}

// Get returns the cached observation without any network access. Store
// failures are logged and reported as absent.
func (c *Cache) Get(ctx context.Context, stationID string) (*model.WeatherObservation, bool) {
	id := model.NormalizeICAO(stationID)

	c.mu.Lock()
	obs, ok := c.mem.Get(id)
	c.mu.Unlock()
	if ok {
		c.opts.Metrics.WeatherLookup("memory")
		return &obs, true
	}

	stored, err := c.store.GetCachedWeather(ctx, id)
	if err != nil {
		c.log.Warn("weather: store read failed, treating as absent", zap.String("station", id), zap.Error(err))
		c.opts.Metrics.WeatherLookup("miss")
		return nil, false
	}
	if stored == nil {
		c.opts.Metrics.WeatherLookup("miss")
		return nil, false
	}

	c.mu.Lock()
	c.remember(*stored)
	c.mu.Unlock()
	c.opts.Metrics.WeatherLookup("store")
	return stored, true
}

// Age returns how long ago obs was fetched according to the cache clock.
func (c *Cache) Age(obs model.WeatherObservation) time.Duration {
	return Age(obs, c.clock.Now())
}

// Tier classifies obs against the cache clock.
func (c *Cache) Tier(obs model.WeatherObservation) Tier {
	return TierFor(c.Age(obs))
}

// Refresh returns the cached entry while it is fresh or aging, and fetches
// otherwise. When the fetch fails and an entry exists, both the entry and a
// FetchFailed error are returned.
func (c *Cache) Refresh(ctx context.Context, stationID string) (*model.WeatherObservation, error) {
	return c.refresh(ctx, stationID, false)
}

// ForceRefresh always fetches, with the same failure semantics as Refresh.
func (c *Cache) ForceRefresh(ctx context.Context, stationID string) (*model.WeatherObservation, error) {
	return c.refresh(ctx, stationID, true)
}

func (c *Cache) refresh(ctx context.Context, stationID string, force bool) (*model.WeatherObservation, error) {
	id := model.NormalizeICAO(stationID)
	if err := model.ValidateStationID(id); err != nil {
		return nil, err
	}

	prev, _ := c.Get(ctx, id)
	if !force && prev != nil && c.Tier(*prev) < TierOld {
		return prev, nil
	}

	// The shared fetch outlives any one caller; each caller only stops
	// waiting on its own ctx.
	ch := c.group.DoChan(id, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
		defer cancel()
		return c.fetchAndStore(fctx, id)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return prev, efberr.Wrap(efberr.FetchFailed, "weather: refresh "+id, ctx.Err())
	}
	if res.Err != nil {
		err := res.Err
		if !efberr.IsFetchFailed(err) {
			err = efberr.Wrap(efberr.FetchFailed, "weather: refresh "+id, err)
		}
		if prev != nil {
			c.log.Info("weather: serving previous observation after failed refresh",
				zap.String("station", id),
				zap.Stringer("tier", c.Tier(*prev)),
				zap.Error(err),
			)
		}
		return prev, err
	}
	obs := res.Val.(model.WeatherObservation)
	return &obs, nil
}

// fetchAndStore runs inside the singleflight for id. A fetch that times
// out never writes, and remember keeps a newer entry over this one.
func (c *Cache) fetchAndStore(ctx context.Context, id string) (model.WeatherObservation, error) {
	fetched, err := c.fetcher.FetchMETAR(ctx, id)
	c.opts.Metrics.WeatherFetch(err)
	if err != nil {
		return model.WeatherObservation{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.WeatherObservation{}, efberr.Wrap(efberr.FetchFailed, "weather: refresh "+id, err)
	}

	obs := *fetched
	obs.StationID = id
	obs.FetchedAt = c.clock.Now()

	c.mu.Lock()
	current := c.remember(obs)
	c.mu.Unlock()

	if err := c.store.PutCachedWeather(ctx, obs); err != nil {
		c.log.Warn("weather: store write failed", zap.String("station", id), zap.Error(err))
	}
	c.log.Debug("weather: refreshed", zap.String("station", id), zap.String("category", string(obs.FlightCategory)))
	return current, nil
}

// remember installs obs unless memory already holds a later fetch, and
// returns whichever entry is current. Callers hold c.mu.
func (c *Cache) remember(obs model.WeatherObservation) model.WeatherObservation {
	if cur, ok := c.mem.Peek(obs.StationID); ok && cur.FetchedAt.After(obs.FetchedAt) {
		return cur
	}
	c.mem.Add(obs.StationID, obs)
	c.opts.Metrics.SetWeatherEntries(c.mem.Len())
	return obs
}

// ClearAll empties the store and then the memory tier. If the store
// cannot be cleared memory is left untouched. Refreshes already in flight
// may repopulate entries afterwards.
func (c *Cache) ClearAll(ctx context.Context) error {
	if err := c.store.ClearWeatherCache(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.mem.Purge()
	c.mu.Unlock()
	c.opts.Metrics.SetWeatherEntries(0)
	c.log.Info("weather: cache cleared")
	return nil
}

// Result is the outcome of refreshing one station in RefreshMany.
type Result struct {
	StationID   string                    `json:"station_id"`
	Observation *model.WeatherObservation `json:"observation,omitempty"`
	Tier        Tier                      `json:"tier"`
	Err         error                     `json:"-"`
}

// RefreshMany refreshes stations concurrently and returns one Result per
// input in input order. Individual failures never abort the batch.
func (c *Cache) RefreshMany(ctx context.Context, stationIDs []string, force bool) []Result {
	results := make([]Result, len(stationIDs))
	var g errgroup.Group
	g.SetLimit(c.opts.RefreshConcurrency)

	for i, raw := range stationIDs {
		results[i].StationID = model.NormalizeICAO(raw)
		g.Go(func() error {
			obs, err := c.refresh(ctx, raw, force)
			results[i].Observation = obs
			results[i].Err = err
			if obs != nil {
				results[i].Tier = c.Tier(*obs)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
