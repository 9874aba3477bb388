// Package ids generates the identifiers used across the messaging core.
// Channels and agents get time-ordered UUID v7s; messages get ULIDs so
// that IDs sort in rough creation order even outside the database.
package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewChannelID generates a time-ordered UUID v7 for a channel.
func NewChannelID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewAgentID generates a time-ordered UUID v7 for a channel membership.
func NewAgentID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewMessageID generates a ULID for a message.
func NewMessageID() string {
	return ulid.Make().String()
}
