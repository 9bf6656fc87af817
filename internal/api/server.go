// Package api is the local HTTP/JSON surface the EFB front end talks to.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/facebookgo/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/charts"
	"github.com/vanboompow/efb-212-sub001/internal/geoindex"
	"github.com/vanboompow/efb-212-sub001/internal/model"
	"github.com/vanboompow/efb-212-sub001/internal/resilience"
	"github.com/vanboompow/efb-212-sub001/internal/route"
	"github.com/vanboompow/efb-212-sub001/internal/weather"
)

// AirportStore is the airport half of the persistent store.
type AirportStore interface {
	GetAirport(ctx context.Context, icao string) (*model.Airport, error)
	SearchAirports(ctx context.Context, query string, limit int) ([]model.Airport, error)
	ListAirports(ctx context.Context) ([]model.Airport, error)
}

// BreakerReporter lists the circuit state of each upstream host.
type BreakerReporter interface {
	Breakers() map[string]resilience.CircuitState
}

// Deps are the long-lived services the handlers call. Each is built once
// by the serve command.
type Deps struct {
	Weather  *weather.Cache
	Charts   *charts.Manager
	Index    *geoindex.Index
	Airports AirportStore
	Breakers BreakerReporter // optional
	// IndexStrategy is used when the index is rebuilt.
	IndexStrategy string
	Gatherer      prometheus.Gatherer
	Clock         clock.Clock
	CORSOrigins   []string
}

// Server routes requests to the services in Deps.
type Server struct {
	weather  *weather.Cache
	charts   *charts.Manager
	airports AirportStore
	breakers BreakerReporter
	planner  route.Planner
	strategy string
	gatherer prometheus.Gatherer
	clock    clock.Clock
	origins  []string
	index    atomic.Pointer[geoindex.Index]
	log      *zap.Logger
}

// New creates a server. A nil Index starts empty until reindexed.
func New(d Deps) *Server {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	s := &Server{
		weather:  d.Weather,
		charts:   d.Charts,
		airports: d.Airports,
		breakers: d.Breakers,
		planner:  route.Planner{Airports: d.Airports},
		strategy: d.IndexStrategy,
		gatherer: d.Gatherer,
		clock:    d.Clock,
		origins:  d.CORSOrigins,
		log:      zap.L().With(zap.String("component", "api")),
	}
	idx := d.Index
	if idx == nil {
		idx, _ = geoindex.New(nil, geoindex.Options{Strategy: d.IndexStrategy})
	}
	s.index.Store(idx)
	return s
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/weather", func(r chi.Router) {
		r.Delete("/", s.handleClearWeather)
		r.Post("/refresh", s.handleRefreshMany)
		r.Get("/{station}", s.handleGetWeather)
		r.Post("/{station}/refresh", s.handleRefreshWeather)
	})

	r.Route("/airports", func(r chi.Router) {
		r.Get("/nearest", s.handleNearest)
		r.Get("/within", s.handleWithin)
		r.Get("/search", s.handleSearch)
		r.Post("/reindex", s.handleReindex)
		r.Get("/{icao}", s.handleGetAirport)
	})

	r.Post("/plan", s.handlePlan)

	r.Route("/charts", func(r chi.Router) {
		r.Get("/", s.handleListCharts)
		r.Get("/expired", s.handleExpiredCharts)
		r.Get("/storage", s.handleChartStorage)
		r.Post("/reload", s.handleReloadCatalog)
		r.Get("/{id}", s.handleGetChart)
		r.Delete("/{id}", s.handleDeleteChart)
		r.Post("/{id}/download", s.handleStartDownload)
		r.Delete("/{id}/download", s.handleCancelDownload)
	})

	return r
}

// Index returns the current geospatial index.
func (s *Server) Index() *geoindex.Index {
	return s.index.Load()
}

// handleHealth reports "degraded" while any upstream circuit is open. The
// server itself is still up, so the code stays 200.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	hosts := map[string]string{}
	if s.breakers != nil {
		for host, st := range s.breakers.Breakers() {
			hosts[host] = st.String()
			if st == resilience.CircuitOpen {
				status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"airports": s.Index().Len(),
		"breakers": hosts,
		"time":     s.clock.Now().UTC().Format(time.RFC3339),
	})
}

// requestLogger logs one line per request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
