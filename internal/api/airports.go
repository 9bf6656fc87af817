package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/geoindex"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

const (
	defaultNearest     = 5
	defaultSearchLimit = 20
)

func pointParam(r *http.Request) (geodesy.Coordinate, error) {
	lat, err := floatParam(r, "lat")
	if err != nil {
		return geodesy.Coordinate{}, err
	}
	lon, err := floatParam(r, "lon")
	if err != nil {
		return geodesy.Coordinate{}, err
	}
	return geodesy.NewCoordinate(lat, lon), nil
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	p, err := pointParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := intParam(r, "count", defaultNearest)
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err := s.Index().NearestWithDistance(p, count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"airports": nonNil(matches)})
}

func (s *Server) handleWithin(w http.ResponseWriter, r *http.Request) {
	p, err := pointParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	radius, err := floatParam(r, "radius_nm")
	if err != nil {
		writeError(w, err)
		return
	}
	matches, err := s.Index().WithinWithDistance(p, radius)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"airports": nonNil(matches)})
}

func nonNil(m []geoindex.Match) []geoindex.Match {
	if m == nil {
		return []geoindex.Match{}
	}
	return m
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, badRequest("api: search", "q is required"))
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	airports, err := s.airports.SearchAirports(r.Context(), q, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if airports == nil {
		airports = []model.Airport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"airports": airports})
}

func (s *Server) handleGetAirport(w http.ResponseWriter, r *http.Request) {
	a, err := s.airports.GetAirport(r.Context(), model.NormalizeICAO(chi.URLParam(r, "icao")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleReindex rebuilds the geospatial index from the store, such as
// after an airport import. Queries keep using the old index until the new
// one is ready.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	idx, err := geoindex.Load(r.Context(), s.airports, geoindex.Options{Strategy: s.strategy})
	if err != nil {
		writeError(w, err)
		return
	}
	s.index.Store(idx)
	s.log.Info("geoindex rebuilt", zap.Int("indexed", idx.Stats().Indexed), zap.Int("skipped", idx.Stats().Skipped))
	writeJSON(w, http.StatusOK, idx.Stats())
}

type planRequest struct {
	Waypoints      []string `json:"waypoints"`
	CruiseSpeedKts float64  `json:"cruise_speed_kts"`
	BurnRateGPH    float64  `json:"burn_rate_gph"`
}

type planView struct {
	*model.RoutePlan
	EstimatedMinutes float64 `json:"estimated_minutes"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	plan, err := s.planner.Plan(r.Context(), req.Waypoints, req.CruiseSpeedKts, req.BurnRateGPH)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planView{RoutePlan: plan, EstimatedMinutes: plan.EstimatedTime.Minutes()})
}
