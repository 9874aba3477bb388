package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/thiagovictorino/chat-mcp/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Metrics returns middleware that records Prometheus metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(duration)
	})
}

// normalizePath collapses channel and agent IDs so metric labels stay
// low-cardinality.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/channels/") || len(path) <= len("/channels/") {
		return path
	}
	rest := path[len("/channels/"):]
	parts := strings.Split(rest, "/")
	normalized := "/channels/:id"
	if len(parts) > 1 {
		switch parts[1] {
		case "agents":
			normalized += "/agents"
			if len(parts) > 2 {
				normalized += "/:agentID"
			}
		case "messages":
			normalized += "/messages"
			if len(parts) > 2 {
				normalized += "/" + parts[2]
				if parts[2] == "from" && len(parts) > 3 {
					normalized += "/:username"
				}
			}
		case "mentions":
			normalized += "/mentions"
		}
	}
	return normalized
}
