package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bethatfriend/bethatfriend/internal/circle"
	"github.com/bethatfriend/bethatfriend/internal/store"
)

// handleListInvites lists every invite, or only queued and sent ones with
// ?status=open.
func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	var (
		invites []store.Invite
		err     error
	)
	userID := actor(r).UserID
	switch r.URL.Query().Get("status") {
	case "open":
		invites, err = s.svc.ListOpenInvites(r.Context(), userID)
	case "":
		invites, err = s.svc.ListInvites(r.Context(), userID)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be open or empty", "kind": "validation"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": invites})
}

func (s *Server) handleCreateInvites(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contacts []circle.ContactInput `json:"contacts"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	invites, err := s.svc.CreateInvites(r.Context(), actor(r), req.Contacts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invites": invites})
}

func (s *Server) handleSendInvite(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.SendInvite(r.Context(), actor(r), chi.URLParam(r, "inviteID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.RequestJoin(r.Context(), chi.URLParam(r, "code"), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
