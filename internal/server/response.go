package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/bethatfriend/bethatfriend/internal/auth"
	"github.com/bethatfriend/bethatfriend/internal/circle"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(kind circle.Kind) int {
	switch kind {
	case circle.KindValidation:
		return http.StatusBadRequest
	case circle.KindNotFound:
		return http.StatusNotFound
	case circle.KindAuthorization:
		return http.StatusForbidden
	case circle.KindConflict:
		return http.StatusConflict
	case circle.KindTransport:
		return http.StatusBadGateway
	case circle.KindUnauthorizedTrigger:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error to a JSON error response. Unclassified
// errors are logged and reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *circle.Error
	if !errors.As(err, &e) {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	status := statusFor(e.Kind)
	if status >= 500 {
		s.log.Warn("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": e.Message, "kind": string(e.Kind)})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &circle.Error{Kind: circle.KindValidation, Message: "invalid json", Cause: err}
	}
	return nil
}

// actor returns the authenticated caller. Routes behind authenticate always
// have one.
func actor(r *http.Request) circle.Actor {
	a, _ := auth.ActorFrom(r.Context())
	return a
}
