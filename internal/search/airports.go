package search

import (
	"context"
	"strings"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// DefaultDelay is the quiet period between keystrokes before a query runs.
const DefaultDelay = 250 * time.Millisecond

// Source is the airport text search backend, normally the store.
type Source interface {
	SearchAirports(ctx context.Context, query string, limit int) ([]model.Airport, error)
}

// Callback receives the results of a query that was not superseded.
type Callback func(q string, airports []model.Airport, err error)

// AirportSearch debounces queries against a Source. Only the latest query
// reports back; earlier ones are dropped even if their lookup finished.
type AirportSearch struct {
	src Source
	deb *Debouncer
	log *zap.Logger
}

// NewAirportSearch wires src behind a debouncer on clk. delay <= 0 uses
// DefaultDelay.
func NewAirportSearch(src Source, clk clock.Clock, delay time.Duration) *AirportSearch {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &AirportSearch{
		src: src,
		deb: NewDebouncer(clk, delay),
		log: zap.L().With(zap.String("component", "search")),
	}
}

// Query schedules a lookup for q. A blank q clears any pending lookup and
// reports an empty result immediately.
func (s *AirportSearch) Query(ctx context.Context, q string, limit int, cb Callback) {
	q = strings.TrimSpace(q)
	if q == "" {
		s.deb.Stop()
		cb(q, nil, nil)
		return
	}
	s.deb.Schedule(ctx, func(ctx context.Context) {
		airports, err := s.src.SearchAirports(ctx, q, limit)
		if ctx.Err() != nil {
			s.log.Debug("search superseded", zap.String("query", q))
			return
		}
		if err != nil {
			s.log.Warn("airport search failed", zap.String("query", q), zap.Error(err))
		}
		cb(q, airports, err)
	})
}

// Close drops any pending lookup.
func (s *AirportSearch) Close() {
	s.deb.Stop()
}
