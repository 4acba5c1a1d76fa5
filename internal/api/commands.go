package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-appliances/internal/audit"
)

// handleListCommands returns the command log, newest first.
//
// Query parameters: platform, id, source, limit, offset.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Platform: q.Get("platform"),
		UniqueID: q.Get("id"),
		Source:   q.Get("source"),
	}
	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.commands.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional integer query parameter. Empty means zero.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "invalid "+name+": "+raw)
		return 0, false
	}
	return v, true
}
