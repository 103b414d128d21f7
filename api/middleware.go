package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

const requestIDHeader = "X-Request-ID"

type loggerKey struct{}

// logger returns the request scoped logger
func logger(r *http.Request) *slog.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// logRequests tags every request with an id and logs its outcome
func (api *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		log := api.log.With("request_id", requestID)
		r = r.WithContext(context.WithValue(r.Context(), loggerKey{}, log))

		m := httpsnoop.CaptureMetrics(next, w, r)

		level := slog.LevelInfo
		if m.Code >= 500 {
			level = slog.LevelError
		} else if m.Code >= 400 {
			level = slog.LevelWarn
		}
		log.Log(r.Context(), level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", m.Code,
			"duration_ms", m.Duration.Milliseconds())
	})
}

// allowCORS applies the same permissive cross origin policy to every route
func allowCORS(next http.Handler) http.Handler {
	return cors.AllowAll().Handler(next)
}
