package server

import (
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bethatfriend/bethatfriend/internal/auth"
	"github.com/bethatfriend/bethatfriend/internal/circle"
	"github.com/bethatfriend/bethatfriend/internal/store"
)

// Options configures a Server.
type Options struct {
	Version string
	// CronSecret authorizes the scheduled trigger routes. Empty refuses them.
	CronSecret string
	Logger     *slog.Logger
}

// Server is the bethatfriend HTTP API server.
type Server struct {
	db         *store.DB
	svc        *circle.Service
	verifier   *auth.Verifier
	cronSecret string
	log        *slog.Logger
	router     chi.Router
	version    string
	started    time.Time
	now        func() time.Time
}

// New creates a Server. A nil verifier leaves every authenticated route
// answering 503.
func New(db *store.DB, svc *circle.Service, verifier *auth.Verifier, opts Options) *Server {
	s := &Server{
		db:         db,
		svc:        svc,
		verifier:   verifier,
		cronSecret: opts.CronSecret,
		log:        opts.Logger,
		version:    opts.Version,
		started:    time.Now(),
		now:        time.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/invite-codes/{code}", s.handleInviterPreview)

		r.Group(func(r chi.Router) {
			r.Use(s.requireTrigger)
			r.Get("/cron/reminders", s.handleTodaysReminders)
			r.Get("/cron/daily-reminders", s.handleDailyReminders)
			r.Post("/cron/daily-reminders", s.handleDailyReminders)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/profile", s.handleGetProfile)
			r.Post("/profile", s.handleCreateProfile)
			r.Put("/profile/email-opt-in", s.handleUpdateOptIn)
			r.Get("/dashboard", s.handleDashboard)

			r.Get("/dates", s.handleListDates)
			r.Put("/dates", s.handleReplaceDates)
			r.Post("/dates", s.handleUpsertDate)
			r.Put("/dates/{dateID}", s.handleUpsertDate)
			r.Delete("/dates/{dateID}", s.handleDeleteDate)
			r.Get("/circle/dates", s.handleCircleDates)

			r.Get("/connections", s.handleListConnections)
			r.Post("/connections", s.handleRequestConnection)
			r.Get("/connections/requests", s.handleIncomingRequests)
			r.Post("/connections/{connectionID}/confirm", s.handleConfirmConnection)

			r.Get("/invites", s.handleListInvites)
			r.Post("/invites", s.handleCreateInvites)
			r.Post("/invites/{inviteID}/send", s.handleSendInvite)
			r.Post("/join/{code}", s.handleJoin)
		})
	})

	s.router = r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.verifier == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authentication is not configured"})
		})
	}
	return s.verifier.Middleware(next)
}

func (s *Server) requireTrigger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := circle.VerifyTrigger(s.cronSecret, auth.BearerToken(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}
