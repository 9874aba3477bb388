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

// CreateChannelRequest represents the channel creation request.
type CreateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxAgents   int    `json:"max_agents,omitempty"`
}

// ChannelInfo represents a channel in list responses.
type ChannelInfo struct {
	ID          string `json:"channel_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AgentCount  int    `json:"agent_count"`
	MaxAgents   int    `json:"max_agents"`
	CreatedAt   string `json:"created_at"`
}

// ChannelListResponse represents the channels list response.
type ChannelListResponse struct {
	Channels []ChannelInfo `json:"channels"`
	Total    int           `json:"total"`
	HasMore  bool          `json:"has_more"`
}

// AgentInfo represents an agent in channel detail responses.
type AgentInfo struct {
	AgentID         string `json:"agent_id"`
	Username        string `json:"username"`
	RoleDescription string `json:"role_description"`
	JoinedAt        string `json:"joined_at"`
}

// ChannelDetailResponse represents the channel info response.
type ChannelDetailResponse struct {
	ID            string      `json:"channel_id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	MaxAgents     int         `json:"max_agents"`
	CurrentAgents int         `json:"current_agents"`
	CreatedAt     string      `json:"created_at"`
	Agents        []AgentInfo `json:"agents"`
}

// CreateChannel handles channel creation.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var ch *models.Channel
	err := retry(r.Context(), "create_channel", func() error {
		var err error
		ch, err = h.svc.Channels.Create(r.Context(), req.Name, req.Description, req.MaxAgents)
		return err
	})
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	metrics.ChannelsCreated.Inc()
	h.JSON(w, http.StatusCreated, ch)
}

// ListChannels handles listing active channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(r.URL.Query().Get("limit"), 20, 100)

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if o, err := strconv.Atoi(raw); err == nil && o >= 0 {
			offset = o
		}
	}

	page, err := h.svc.Channels.List(r.Context(), limit, offset)
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	channels := make([]ChannelInfo, len(page.Channels))
	for i, ch := range page.Channels {
		channels[i] = ChannelInfo{
			ID:          ch.ID.String(),
			Name:        ch.Name,
			Description: ch.Description,
			AgentCount:  ch.AgentCount,
			MaxAgents:   ch.MaxAgents,
			CreatedAt:   ch.CreatedAt.UTC().Format(timeFormat),
		}
	}

	h.JSON(w, http.StatusOK, ChannelListResponse{
		Channels: channels,
		Total:    page.Total,
		HasMore:  page.HasMore,
	})
}

// GetChannel handles channel detail lookup. The path segment is treated
// as a channel ID when it parses as a UUID and as a channel name
// otherwise.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	var (
		id   uuid.UUID
		name string
	)
	if parsed, err := uuid.Parse(ref); err == nil {
		id = parsed
	} else {
		name = ref
	}

	ch, err := h.svc.Channels.Get(r.Context(), id, name)
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	agents, err := h.svc.Agents.List(r.Context(), ch.ID)
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	infos := make([]AgentInfo, len(agents))
	for i, a := range agents {
		infos[i] = AgentInfo{
			AgentID:         a.ID.String(),
			Username:        a.Username,
			RoleDescription: a.RoleDescription,
			JoinedAt:        a.JoinedAt.UTC().Format(timeFormat),
		}
	}

	h.JSON(w, http.StatusOK, ChannelDetailResponse{
		ID:            ch.ID.String(),
		Name:          ch.Name,
		Description:   ch.Description,
		MaxAgents:     ch.MaxAgents,
		CurrentAgents: len(agents),
		CreatedAt:     ch.CreatedAt.UTC().Format(timeFormat),
		Agents:        infos,
	})
}

// DeleteChannel handles channel deactivation.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}

	if err := h.svc.Channels.Deactivate(r.Context(), id); err != nil {
		h.WriteErr(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
