package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/model"
	"github.com/vanboompow/efb-212-sub001/internal/weather"
)

// weatherView is an observation with its freshness. Stale is set when
// the entry is past the old tier or when it was served after a failed
// refresh; Error then carries the failure.
type weatherView struct {
	*model.WeatherObservation
	Tier       weather.Tier `json:"tier"`
	AgeSeconds int64        `json:"age_seconds"`
	Stale      bool         `json:"stale"`
	Error      string       `json:"error,omitempty"`
}

func (s *Server) viewOf(obs *model.WeatherObservation, err error) weatherView {
	tier := s.weather.Tier(*obs)
	v := weatherView{
		WeatherObservation: obs,
		Tier:               tier,
		AgeSeconds:         int64(s.weather.Age(*obs).Seconds()),
		Stale:              tier == weather.TierStale || err != nil,
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	id := model.NormalizeICAO(chi.URLParam(r, "station"))
	if err := model.ValidateStationID(id); err != nil {
		writeError(w, err)
		return
	}
	obs, ok := s.weather.Get(r.Context(), id)
	if !ok {
		writeError(w, efberr.New(efberr.NotFound, "weather", "no cached observation for "+id))
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(obs, nil))
}

func (s *Server) handleRefreshWeather(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "station")
	refresh := s.weather.Refresh
	if r.URL.Query().Get("force") == "true" {
		refresh = s.weather.ForceRefresh
	}
	obs, err := refresh(r.Context(), id)
	if obs == nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(obs, err))
}

type refreshManyRequest struct {
	Stations []string `json:"stations"`
	Force    bool     `json:"force"`
}

type refreshManyItem struct {
	StationID   string       `json:"station_id"`
	Observation *weatherView `json:"observation,omitempty"`
	Error       *errorBody   `json:"error,omitempty"`
}

func (s *Server) handleRefreshMany(w http.ResponseWriter, r *http.Request) {
	var req refreshManyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Stations) == 0 {
		writeError(w, badRequest("api: refresh", "stations is required"))
		return
	}

	results := s.weather.RefreshMany(r.Context(), req.Stations, req.Force)
	out := make([]refreshManyItem, len(results))
	for i, res := range results {
		out[i].StationID = res.StationID
		if res.Observation != nil {
			v := s.viewOf(res.Observation, res.Err)
			out[i].Observation = &v
		} else if res.Err != nil {
			out[i].Error = &errorBody{Error: res.Err.Error(), Kind: efberr.KindOf(res.Err).String()}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleClearWeather(w http.ResponseWriter, r *http.Request) {
	if err := s.weather.ClearAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
