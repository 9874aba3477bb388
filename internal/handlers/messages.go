package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thiagovictorino/chat-mcp/internal/metrics"
	"github.com/thiagovictorino/chat-mcp/internal/models"
)

// SendMessageRequest represents the message send request.
type SendMessageRequest struct {
	AgentID string `json:"agent_id"`
	Content string `json:"content"`
}

// MessageListResponse represents any list-of-messages response.
type MessageListResponse struct {
	Messages []models.MessageView `json:"messages"`
	Count    int                  `json:"count"`
}

// SendMessage handles appending a message to a channel's log.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid agent ID format")
		return
	}

	var msg *models.Message
	err = retry(r.Context(), "send_message", func() error {
		var err error
		msg, err = h.svc.Messages.Append(r.Context(), channelID, agentID, req.Content)
		return err
	})
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	metrics.MessagesSent.Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// PeekMessages handles the read-only view of a channel's recent messages.
// No read receipts are written, so this never affects any agent's unread
// cursor.
func (h *Handler) PeekMessages(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}
	limit := clampLimit(r.URL.Query().Get("limit"), 50, 200)

	views, err := h.svc.Messages.Peek(r.Context(), channelID, limit)
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: views, Count: len(views)})
}

// GetNewMessages handles exactly-once unread delivery. Returned messages
// are marked read in the same transaction that selected them, so a second
// call returns only what arrived in between.
func (h *Handler) GetNewMessages(w http.ResponseWriter, r *http.Request) {
	channelID, agentID, ok := h.channelAndAgent(w, r)
	if !ok {
		return
	}
	limit := clampLimit(r.URL.Query().Get("limit"), 50, 200)

	var views []models.MessageView
	err := retry(r.Context(), "get_new_messages", func() error {
		var err error
		views, err = h.svc.Ledger.Unread(r.Context(), channelID, agentID, limit)
		return err
	})
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	metrics.MessagesDelivered.WithLabelValues("unread").Add(float64(len(views)))
	h.JSON(w, http.StatusOK, MessageListResponse{Messages: views, Count: len(views)})
}

// GetHistory handles paged history retrieval for an agent. Pass
// before_sequence to page backwards; everything returned is marked read.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	channelID, agentID, ok := h.channelAndAgent(w, r)
	if !ok {
		return
	}
	limit := clampLimit(r.URL.Query().Get("limit"), 50, 200)

	var beforeSequence int64
	if raw := r.URL.Query().Get("before_sequence"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seq < 1 {
			h.Error(w, http.StatusBadRequest, "before_sequence must be a positive integer")
			return
		}
		beforeSequence = seq
	}

	var views []models.MessageView
	err := retry(r.Context(), "get_history", func() error {
		var err error
		views, err = h.svc.Messages.History(r.Context(), channelID, agentID, limit, beforeSequence)
		return err
	})
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	metrics.MessagesDelivered.WithLabelValues("history").Add(float64(len(views)))
	h.JSON(w, http.StatusOK, MessageListResponse{Messages: views, Count: len(views)})
}

// GetAgentMessages handles listing one agent's recent messages in a
// channel. Read-only; nothing is marked.
func (h *Handler) GetAgentMessages(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}
	username := chi.URLParam(r, "username")
	limit := clampLimit(r.URL.Query().Get("limit"), 20, 100)

	views, err := h.svc.Messages.ByAgent(r.Context(), channelID, username, limit)
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: views, Count: len(views)})
}

// CheckMentions handles retrieving messages that @mention the calling
// agent. Returned messages are marked read atomically, like unread
// delivery.
func (h *Handler) CheckMentions(w http.ResponseWriter, r *http.Request) {
	channelID, agentID, ok := h.channelAndAgent(w, r)
	if !ok {
		return
	}
	limit := clampLimit(r.URL.Query().Get("limit"), 20, 100)

	var views []models.MessageView
	err := retry(r.Context(), "check_mentions", func() error {
		var err error
		views, err = h.svc.Messages.Mentioning(r.Context(), channelID, agentID, limit)
		return err
	})
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	metrics.MessagesDelivered.WithLabelValues("mentions").Add(float64(len(views)))
	h.JSON(w, http.StatusOK, MessageListResponse{Messages: views, Count: len(views)})
}

// channelAndAgent parses the channel path param and the required agent_id
// query param, writing the error response itself on failure.
func (h *Handler) channelAndAgent(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return uuid.Nil, uuid.Nil, false
	}
	agentID, err := uuid.Parse(r.URL.Query().Get("agent_id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "agent_id query parameter is required")
		return uuid.Nil, uuid.Nil, false
	}
	return channelID, agentID, true
}
