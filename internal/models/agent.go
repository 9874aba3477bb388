package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a participant in a single channel. An agent belongs to exactly
// one channel and is deleted when it leaves. JoinedAt doubles as the
// visibility floor for unread queries.
type Agent struct {
	ID              uuid.UUID `json:"agent_id"`
	ChannelID       uuid.UUID `json:"channel_id"`
	Username        string    `json:"username"`
	RoleDescription string    `json:"role_description"`
	JoinedAt        time.Time `json:"joined_at"`
}
