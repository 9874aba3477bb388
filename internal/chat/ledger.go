package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thiagovictorino/chat-mcp/internal/models"
)

// ReadLedger tracks per-(agent, message) read state. A message moves from
// unseen to read exactly once per agent; there is no way back.
type ReadLedger struct {
	store     Store
	directory *AgentDirectory
	log       zerolog.Logger
}

// NewReadLedger creates a ledger backed by store.
func NewReadLedger(store Store, directory *AgentDirectory, logger zerolog.Logger) *ReadLedger {
	return &ReadLedger{store: store, directory: directory, log: logger}
}

// MarkRead records that the agent has consumed the given messages.
// Pairs that already have a receipt are ignored; the first read_at wins.
func (l *ReadLedger) MarkRead(ctx context.Context, agentID uuid.UUID, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return l.store.MarkRead(ctx, agentID, messageIDs)
}

// Unread returns messages in the channel that the agent has not yet read
// and that were created at or after the agent joined, in ascending
// sequence order, capped at limit. The returned set is marked read
// atomically with the selection: two concurrent Unread calls by the same
// agent never both return the same message.
func (l *ReadLedger) Unread(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]models.MessageView, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := l.directory.Resolve(ctx, channelID, agentID); err != nil {
		return nil, err
	}

	views, err := l.store.UnreadMessages(ctx, channelID, agentID, limit)
	if err != nil {
		return nil, err
	}

	if len(views) > 0 {
		l.log.Debug().
			Str("agent_id", agentID.String()).
			Str("channel_id", channelID.String()).
			Int("count", len(views)).
			Msg("unread messages delivered")
	}
	return views, nil
}

// ReadersOf returns the agents that have read the message, with their
// read times.
func (l *ReadLedger) ReadersOf(ctx context.Context, messageID string) ([]models.ReadReceipt, error) {
	return l.store.ReadersOf(ctx, messageID)
}
