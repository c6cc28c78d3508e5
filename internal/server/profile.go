package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Profile(r.Context(), actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":  u,
		"join_url": s.svc.JoinURL(u.InviteCode),
	})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.svc.CreateProfile(r.Context(), actor(r), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":  u,
		"join_url": s.svc.JoinURL(u.InviteCode),
	})
}

func (s *Server) handleUpdateOptIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required", "kind": "validation"})
		return
	}
	u, err := s.svc.UpdateOptIn(r.Context(), actor(r), *req.Enabled)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": u})
}

func (s *Server) handleInviterPreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.InviterPreview(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
