package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-appliances/internal/audit"
	"github.com/nerrad567/gray-logic-appliances/internal/entity"
)

// EntityView is an entity snapshot as served by the API.
type EntityView struct {
	entity.Snapshot
	Disabled bool `json:"disabled"`
}

// updateEntityRequest is the body of PATCH /entities/{platform}/{id}.
type updateEntityRequest struct {
	Disabled *bool `json:"disabled"`
}

// speedRequest is the optional body of turn_on and the body of speed.
type speedRequest struct {
	Speed *int `json:"speed"`
}

func (s *Server) entityView(snap entity.Snapshot) EntityView {
	return EntityView{Snapshot: snap, Disabled: s.host.IsDisabled(snap.Key())}
}

// currentViews returns a view of every registered entity.
func (s *Server) currentViews() []EntityView {
	snaps := s.registry.Snapshots()
	views := make([]EntityView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, s.entityView(snap))
	}
	return views
}

// handleListEntities returns every discovered entity, optionally filtered
// by ?platform=.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	var entities []entity.Entity
	if p := r.URL.Query().Get("platform"); p != "" {
		platform := entity.Platform(p)
		if !platform.Valid() {
			writeBadRequest(w, "unknown platform: "+p)
			return
		}
		entities = s.registry.ListByPlatform(platform)
	} else {
		entities = s.registry.List()
	}

	views := make([]EntityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, s.entityView(e.Snapshot()))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": views,
		"count":    len(views),
	})
}

// handleGetEntity returns one entity.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.entityView(e.Snapshot()))
}

// handleUpdateEntity flips the host-side disabled flag.
func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}

	var req updateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Disabled == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "disabled is required")
		return
	}

	if err := s.host.SetDisabled(r.Context(), e.Key(), *req.Disabled); err != nil {
		s.logger.Error("failed to update entity", "entity", e.Key().String(), "error", err)
		writeEntityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.entityView(e.Snapshot()))
}

// handleRemoveEntity removes the entity host-side. It is announced again
// by the next discovery pass.
func (s *Server) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}
	if err := s.host.Remove(r.Context(), e.Key()); err != nil {
		s.logger.Error("failed to remove entity", "entity", e.Key().String(), "error", err)
		writeEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTurnOn sends turn_on, with an optional {"speed":N} for fans.
func (s *Server) handleTurnOn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSpeed(w, r)
	if !ok {
		return
	}
	s.execute(w, r, entity.Command{Command: entity.CommandTurnOn, Speed: req.Speed})
}

// handleTurnOff sends turn_off.
func (s *Server) handleTurnOff(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, entity.Command{Command: entity.CommandTurnOff})
}

// handleSetSpeed sends a ventilation step. The body is required.
func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSpeed(w, r)
	if !ok {
		return
	}
	if req.Speed == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "speed is required")
		return
	}
	s.execute(w, r, entity.Command{Command: entity.CommandSetSpeed, Speed: req.Speed})
}

// execute submits cmd and answers 202. The action is queued for the cloud;
// the entity's state only changes after a later refresh.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, cmd entity.Command) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}

	if !s.host.IsRegistered(e.Key()) {
		reason := "entity is not registered with the host: "
		if s.host.IsDisabled(e.Key()) {
			reason = "entity is disabled: "
		}
		writeError(w, http.StatusConflict, ErrCodeConflict, reason+e.Key().String())
		return
	}

	err := entity.Execute(r.Context(), e, cmd)
	s.recordCommand(r, e, cmd, err)
	if err != nil {
		s.logger.Warn("entity command rejected",
			"entity", e.Key().String(),
			"command", cmd.Command,
			"error", err,
		)
		writeEntityError(w, err)
		return
	}

	s.logger.Info("entity command accepted", "entity", e.Key().String(), "command", cmd.Command)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"entity":  e.Key().String(),
		"command": cmd.Command,
	})
}

// recordCommand writes the command to the command log, if one is configured.
func (s *Server) recordCommand(r *http.Request, e entity.Entity, cmd entity.Command, execErr error) {
	if s.commands == nil {
		return
	}
	if err := s.commands.Record(r.Context(), audit.CommandEntry(audit.SourceAPI, e, cmd, execErr)); err != nil {
		s.logger.Warn("recording command", "entity", e.Key().String(), "error", err)
	}
}

// lookupEntity resolves {platform}/{id}, writing 404 when unknown.
func (s *Server) lookupEntity(w http.ResponseWriter, r *http.Request) (entity.Entity, bool) {
	key := entity.Key{
		Platform: entity.Platform(chi.URLParam(r, "platform")),
		UniqueID: chi.URLParam(r, "id"),
	}
	if !key.Platform.Valid() {
		writeNotFound(w, "unknown platform: "+string(key.Platform))
		return nil, false
	}
	e, err := s.registry.Get(key)
	if err != nil {
		writeEntityError(w, err)
		return nil, false
	}
	return e, true
}

// decodeSpeed reads an optional speed body. An empty body is allowed.
func decodeSpeed(w http.ResponseWriter, r *http.Request) (speedRequest, bool) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return req, false
	}
	return req, true
}
