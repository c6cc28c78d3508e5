package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bethatfriend/bethatfriend/internal/circle"
)

func (s *Server) handleListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.svc.ListDates(r.Context(), actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

func (s *Server) handleReplaceDates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dates []circle.DateInput `json:"dates"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	dates, err := s.svc.ReplaceDates(r.Context(), actor(r), req.Dates)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

// handleUpsertDate serves both POST /dates and PUT /dates/{dateID}.
func (s *Server) handleUpsertDate(w http.ResponseWriter, r *http.Request) {
	var in circle.DateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.ID = chi.URLParam(r, "dateID")

	d, err := s.svc.UpsertDate(r.Context(), actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if in.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"date": d})
}

func (s *Server) handleDeleteDate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteDate(r.Context(), actor(r), chi.URLParam(r, "dateID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCircleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.svc.ListCircleDates(r.Context(), actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}
