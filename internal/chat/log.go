package chat

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thiagovictorino/chat-mcp/internal/models"
)

const (
	minContent = 1
	maxContent = 4000
)

// MessageLog is the append-only, per-channel monotonically sequenced
// message store.
type MessageLog struct {
	store     Store
	directory *AgentDirectory
	mentions  *MentionResolver
	log       zerolog.Logger

	// historyJoinFloor, when set, makes History hide messages that
	// predate the requesting agent's join. The observed product behavior
	// is that an explicit history request bypasses the floor, so this
	// defaults to off.
	historyJoinFloor bool
}

// NewMessageLog creates a message log. historyJoinFloor controls whether
// History applies the requester's join-time visibility floor.
func NewMessageLog(store Store, directory *AgentDirectory, mentions *MentionResolver, logger zerolog.Logger, historyJoinFloor bool) *MessageLog {
	return &MessageLog{
		store:            store,
		directory:        directory,
		mentions:         mentions,
		log:              logger,
		historyJoinFloor: historyJoinFloor,
	}
}

// Append validates and commits a message. Mentions are extracted and
// checked against current membership before anything is persisted; an
// unknown mention aborts the send with no message, mention row, or
// sequence number left behind. The sequence number is assigned atomically
// with the insert, and the sender's own read receipt is written in the
// same transaction.
func (l *MessageLog) Append(ctx context.Context, channelID, agentID uuid.UUID, content string) (*models.Message, error) {
	if n := utf8.RuneCountInString(content); n < minContent || n > maxContent {
		return nil, Validationf("message content must be %d-%d characters", minContent, maxContent)
	}

	if _, err := l.directory.Resolve(ctx, channelID, agentID); err != nil {
		return nil, err
	}

	mentions := ExtractMentions(content)
	if err := l.mentions.Validate(ctx, channelID, mentions); err != nil {
		return nil, err
	}

	msg, err := l.store.AppendMessage(ctx, channelID, agentID, content, mentions)
	if err != nil {
		return nil, err
	}

	l.log.Debug().
		Str("message_id", msg.ID).
		Str("channel_id", channelID.String()).
		Int64("sequence", msg.SequenceNumber).
		Int("mentions", len(mentions)).
		Msg("message appended")

	return msg, nil
}

// History returns up to limit messages in ascending sequence order,
// ending at the newest message or, when beforeSequence > 0, at the last
// sequence number strictly below it. Messages in the returned page not yet
// read by the requester are marked read as a side effect.
func (l *MessageLog) History(ctx context.Context, channelID, agentID uuid.UUID, limit int, beforeSequence int64) ([]models.MessageView, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := l.directory.Resolve(ctx, channelID, agentID); err != nil {
		return nil, err
	}
	return l.store.HistoryMessages(ctx, channelID, agentID, limit, beforeSequence, l.historyJoinFloor)
}

// ByAgent returns the newest messages authored by the agent with the
// given username, in ascending order. Read state is not modified.
func (l *MessageLog) ByAgent(ctx context.Context, channelID uuid.UUID, targetUsername string, limit int) ([]models.MessageView, error) {
	if limit <= 0 {
		limit = 20
	}
	target, err := l.directory.ResolveByUsername(ctx, channelID, targetUsername)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, NotFoundf("agent @%s not found in channel", targetUsername)
	}
	return l.store.AgentMessages(ctx, channelID, target.ID, limit)
}

// Mentioning returns the newest messages that mention the requesting
// agent, in ascending order, and marks them read.
func (l *MessageLog) Mentioning(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]models.MessageView, error) {
	if limit <= 0 {
		limit = 20
	}
	agent, err := l.directory.Resolve(ctx, channelID, agentID)
	if err != nil {
		return nil, err
	}
	return l.store.MentionMessages(ctx, channelID, agentID, agent.Username, limit)
}

// Peek returns the newest messages in the channel in ascending order
// without touching any agent's read state. Used by the monitoring surface.
func (l *MessageLog) Peek(ctx context.Context, channelID uuid.UUID, limit int) ([]models.MessageView, error) {
	if limit <= 0 {
		limit = 50
	}
	ch, err := l.store.ChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, NotFoundf("channel not found")
	}
	return l.store.ChannelMessages(ctx, channelID, limit)
}
