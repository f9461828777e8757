package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/session"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// writeError maps domain errors to status codes. Anything unrecognized is a 500 whose
// text is only exposed in development.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		body   = envelope{Success: false}
		verr   *curriculum.ValidationError
	)

	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.Error = "invalid request"
		body.Fields = make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			if _, ok := body.Fields[f.Field]; !ok {
				body.Fields[f.Field] = f.Error
			}
		}
	case errors.Is(err, curriculum.ErrNotFound):
		status = http.StatusNotFound
		body.Error = err.Error()
	case errors.Is(err, curriculum.ErrConflict):
		status = http.StatusConflict
		body.Error = err.Error()
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusUnauthorized
		body.Error = "invalid or expired session"
	default:
		status = http.StatusInternalServerError
		body.Error = http.StatusText(http.StatusInternalServerError)
		if s.dev {
			body.Detail = err.Error()
		}
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, body)
}

// withIdentity resolves "Authorization: Bearer <token>" into a session identity on
// the request context. Requests without a token pass through anonymously; an unknown
// token is rejected. When the session store itself fails the request continues
// without an identity.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	if s.sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := s.sessions.Lookup(r.Context(), token)
		switch {
		case err == nil:
			r = r.WithContext(session.WithIdentity(r.Context(), id))
		case errors.Is(err, session.ErrNotFound):
			s.writeError(w, r, err)
			return
		default:
			slog.Warn("session lookup failed", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
