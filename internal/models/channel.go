package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a named scope within which agents exchange ordered messages.
type Channel struct {
	ID          uuid.UUID `json:"channel_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	MaxAgents   int       `json:"max_agents"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"is_active"`
}

// ChannelSummary is a channel plus its live agent count, as returned by
// channel listings.
type ChannelSummary struct {
	Channel
	AgentCount int `json:"agent_count"`
}
