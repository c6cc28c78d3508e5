package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.svc.ListConnections(r.Context(), actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": conns})
}

func (s *Server) handleRequestConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.svc.RequestConnectionByCode(r.Context(), actor(r), req.InviteCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connection": c})
}

func (s *Server) handleIncomingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.svc.ListIncomingRequests(r.Context(), actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (s *Server) handleConfirmConnection(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.ConfirmConnection(r.Context(), actor(r), chi.URLParam(r, "connectionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connection": c})
}

// handleDashboard gathers what the home screen shows in one round trip.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, userID := r.Context(), actor(r).UserID

	profile, err := s.svc.Profile(ctx, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dates, err := s.svc.ListCircleDates(ctx, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	requests, err := s.svc.ListIncomingRequests(ctx, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	invites, err := s.svc.ListOpenInvites(ctx, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"profile":      profile,
		"join_url":     s.svc.JoinURL(profile.InviteCode),
		"circle_dates": dates,
		"requests":     requests,
		"open_invites": invites,
	})
}
