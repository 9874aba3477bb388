// Package handlers exposes the messaging core over HTTP. Handlers do
// transport concerns only: decoding, limit clamping, error-to-status
// mapping, and bounded retry of transient conflicts. All semantics live
// in the chat package.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thiagovictorino/chat-mcp/internal/chat"
	"github.com/thiagovictorino/chat-mcp/internal/metrics"
)

// timeFormat is the wire format for all timestamps in responses.
const timeFormat = time.RFC3339

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	svc   *chat.Service
	store chat.Store
	redis *redis.Client // nil when rate limiting is disabled
}

// NewHandler creates a new Handler over the chat service. redisClient
// may be nil.
func NewHandler(svc *chat.Service, store chat.Store, redisClient *redis.Client) *Handler {
	return &Handler{svc: svc, store: store, redis: redisClient}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// WriteErr maps a tagged chat error onto an HTTP status. Unknown errors
// become opaque 500s.
func (h *Handler) WriteErr(w http.ResponseWriter, err error) {
	switch chat.KindOf(err) {
	case chat.KindValidation:
		h.Error(w, http.StatusBadRequest, err.Error())
	case chat.KindNotFound:
		h.Error(w, http.StatusNotFound, err.Error())
	case chat.KindConflict, chat.KindCapacity:
		h.Error(w, http.StatusConflict, err.Error())
	case chat.KindConcurrency:
		h.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// retry runs fn with bounded retries on transient transaction conflicts,
// counting each retry against the named operation.
func retry(ctx context.Context, op string, fn func() error) error {
	first := true
	return chat.Retry(ctx, func() error {
		if !first {
			metrics.TxRetries.WithLabelValues(op).Inc()
		}
		first = false
		return fn()
	})
}

// clampLimit parses a limit query value with a default and a hard cap.
func clampLimit(raw string, def, max int) int {
	limit := def
	if raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
