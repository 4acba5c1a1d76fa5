package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleListAppliances returns the cached appliance records.
func (s *Server) handleListAppliances(w http.ResponseWriter, _ *http.Request) {
	records := s.cache.Snapshot()
	resp := map[string]any{
		"appliances": records,
		"count":      len(records),
	}
	if at := s.cache.UpdatedAt(); !at.IsZero() {
		resp["updated_at"] = at.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetAppliance returns one cached record with the entities built from it.
func (s *Server) handleGetAppliance(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	rec, ok := s.cache.Get(deviceID)
	if !ok {
		writeNotFound(w, "appliance not found: "+deviceID)
		return
	}

	entities := s.registry.ListByDevice(deviceID)
	views := make([]EntityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, s.entityView(e.Snapshot()))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appliance": rec,
		"entities":  views,
	})
}

// handleRefresh asks the poller to fetch now. The push to the host follows
// once the poll lands.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.poller == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "cloud poller not configured")
		return
	}
	s.poller.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}
