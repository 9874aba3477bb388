package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a request logging middleware using zerolog. Channel
// traffic is attributable: when the request carries an agent identity
// it is logged alongside the matched route pattern, so one agent's
// polling can be followed across channels.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			evt := logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_addr", r.RemoteAddr)
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					evt = evt.Str("route", pattern)
				}
			}
			if agentID := AgentIdentity(r); agentID != "" {
				evt = evt.Str("agent_id", agentID)
			}
			evt.Msg("request completed")
		})
	}
}

// AgentIdentity extracts the caller's agent ID from the request, or ""
// when the request is anonymous. Agents identify themselves with the
// agent_id query parameter; the X-Agent-ID header is a fallback for
// requests that carry the ID in the body only.
func AgentIdentity(r *http.Request) string {
	if id := r.URL.Query().Get("agent_id"); id != "" {
		return id
	}
	return r.Header.Get("X-Agent-ID")
}
