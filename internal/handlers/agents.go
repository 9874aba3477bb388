package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thiagovictorino/chat-mcp/internal/metrics"
	"github.com/thiagovictorino/chat-mcp/internal/models"
)

// JoinChannelRequest represents the join request.
type JoinChannelRequest struct {
	Username        string `json:"username"`
	RoleDescription string `json:"role_description"`
}

// AgentListResponse represents the channel roster response.
type AgentListResponse struct {
	Agents []AgentInfo `json:"agents"`
	Total  int         `json:"total"`
}

// JoinChannel handles an agent joining a channel.
func (h *Handler) JoinChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}

	// Fast-fail on full channels; the race-free check runs again inside
	// the join transaction.
	if err := h.svc.Channels.CheckCapacity(r.Context(), channelID); err != nil {
		h.WriteErr(w, err)
		return
	}

	var req JoinChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var agent *models.Agent
	err = retry(r.Context(), "join_channel", func() error {
		var err error
		agent, err = h.svc.Agents.Join(r.Context(), channelID, req.Username, req.RoleDescription)
		return err
	})
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	metrics.AgentsJoined.Inc()
	h.JSON(w, http.StatusCreated, agent)
}

// LeaveChannel handles an agent leaving a channel. The agent's messages
// and read receipts go with it.
func (h *Handler) LeaveChannel(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid agent ID format")
		return
	}

	err = retry(r.Context(), "leave_channel", func() error {
		return h.svc.Agents.Leave(r.Context(), channelID, agentID)
	})
	if err != nil {
		h.WriteErr(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// ListAgents handles listing a channel's roster.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}

	agents, err := h.svc.Agents.List(r.Context(), channelID)
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

	h.JSON(w, http.StatusOK, AgentListResponse{Agents: infos, Total: len(infos)})
}
