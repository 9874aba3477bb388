package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable entry in a channel's append-only log.
// SequenceNumber is assigned at commit time and totally orders messages
// within one channel; cross-channel ordering is undefined.
type Message struct {
	ID             string    `json:"message_id"` // ULID
	ChannelID      uuid.UUID `json:"channel_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	Content        string    `json:"content"`
	SequenceNumber int64     `json:"sequence_number"`
	CreatedAt      time.Time `json:"timestamp"`
}

// Sender identifies the author of a message.
type Sender struct {
	AgentID  uuid.UUID `json:"agent_id"`
	Username string    `json:"username"`
}

// ReadReceipt records that one agent has consumed one message. At most one
// receipt exists per (agent, message); the first read_at wins.
type ReadReceipt struct {
	Username string    `json:"username"`
	ReadAt   time.Time `json:"read_at"`
}

// MessageView is a message enriched with sender identity, extracted
// mentions, and the set of agents that have read it.
type MessageView struct {
	ID             string        `json:"message_id"`
	Sender         Sender        `json:"sender"`
	Content        string        `json:"content"`
	Mentions       []string      `json:"mentions"`
	CreatedAt      time.Time     `json:"timestamp"`
	SequenceNumber int64         `json:"sequence_number"`
	ReadBy         []ReadReceipt `json:"read_by"`
}
