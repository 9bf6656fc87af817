package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vanboompow/efb-212-sub001/internal/charts"
	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

type taskView struct {
	TaskID   string              `json:"task_id"`
	RegionID string              `json:"region_id"`
	State    model.DownloadState `json:"state"`
	Progress float64             `json:"progress"`
	Error    string              `json:"error,omitempty"`
}

func taskViewOf(t *charts.Task) *taskView {
	if t == nil {
		return nil
	}
	u := t.Snapshot()
	v := &taskView{TaskID: u.TaskID, RegionID: u.RegionID, State: u.State, Progress: u.Progress}
	if u.Err != nil {
		v.Error = u.Err.Error()
	}
	return v
}

type regionView struct {
	model.ChartRegion
	State      model.RegionState `json:"state"`
	Downloaded bool              `json:"downloaded"`
	Expired    bool              `json:"expired"`
	Task       *taskView         `json:"task,omitempty"`
}

func (s *Server) regionViews(regions []model.ChartRegion) []regionView {
	now := s.clock.Now()
	out := make([]regionView, 0, len(regions))
	for _, r := range regions {
		out = append(out, regionView{
			ChartRegion: r,
			State:       s.charts.State(r.ID),
			Downloaded:  r.IsDownloaded(),
			Expired:     r.IsExpired(now),
			Task:        taskViewOf(s.charts.Task(r.ID)),
		})
	}
	return out
}

func (s *Server) handleListCharts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": s.regionViews(s.charts.Regions())})
}

func (s *Server) handleExpiredCharts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": s.regionViews(s.charts.ExpiredRegions())})
}

func (s *Server) handleChartStorage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"bytes": s.charts.StorageUsed(r.Context())})
}

// handleReloadCatalog re-reads the catalog. When the source fails and a
// snapshot was served, the response is 200 with stale set.
func (s *Server) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	regions, err := s.charts.LoadCatalog(r.Context())
	if err != nil && regions == nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"regions": s.regionViews(regions), "stale": err != nil}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	region, err := s.charts.Region(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.regionViews([]model.ChartRegion{region})[0])
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	t, err := s.charts.Download(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, taskViewOf(t))
}

func (s *Server) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.charts.Region(id); err != nil {
		writeError(w, err)
		return
	}
	if !s.charts.Cancel(id) {
		writeError(w, efberr.New(efberr.NotFound, "charts: cancel", "no download in progress for "+id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	if err := s.charts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
