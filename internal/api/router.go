package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)

			r.Route("/{platform}/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEntity)
				r.Patch("/", s.handleUpdateEntity)
				r.Delete("/", s.handleRemoveEntity)
				r.Post("/turn_on", s.handleTurnOn)
				r.Post("/turn_off", s.handleTurnOff)
				r.Post("/speed", s.handleSetSpeed)
			})
		})

		r.Get("/appliances", s.handleListAppliances)
		r.Get("/appliances/{deviceID}", s.handleGetAppliance)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/commands", s.handleListCommands)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports liveness plus poller and dispatcher counters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"entities":   s.registry.Len(),
		"appliances": s.cache.Len(),
		"ws_clients": s.hub.ClientCount(),
	}
	if s.poller != nil {
		st := s.poller.Status()
		if st.ConsecutiveFailures > 0 {
			resp["status"] = "degraded"
		}
		resp["poll"] = st
	}
	if s.dispatcher != nil {
		resp["dispatch"] = s.dispatcher.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}
