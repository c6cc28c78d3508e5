package server

import (
	"net/http"

	"github.com/bethatfriend/bethatfriend/internal/circle"
)

// todayParam reads ?date=, defaulting to the server's current day.
func (s *Server) todayParam(r *http.Request) (circle.Today, error) {
	if d := r.URL.Query().Get("date"); d != "" {
		return circle.ParseToday(d)
	}
	return circle.TodayFrom(s.now()), nil
}

func (s *Server) handleTodaysReminders(w http.ResponseWriter, r *http.Request) {
	today, err := s.todayParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reminders, err := s.svc.TodaysReminders(r.Context(), today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if reminders == nil {
		reminders = []circle.ReminderCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":      today.String(),
		"reminders": reminders,
	})
}

func (s *Server) handleDailyReminders(w http.ResponseWriter, r *http.Request) {
	today, err := s.todayParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.svc.RunDailyReminders(r.Context(), today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
