package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/thiagovictorino/chat-mcp/internal/models"
)

// Store is the persistence contract the messaging core runs against.
// Implementations must make every mutating method a single transaction:
// concurrent appends to one channel must never share a sequence number,
// concurrent unread calls by one agent must never return the same message
// twice, and a capacity check must be atomic with the agent insert.
// Both the SQLite and PostgreSQL stores implement this interface.
type Store interface {
	Close()
	Ping(ctx context.Context) error

	// Channels. Lookups match active channels only.
	CreateChannel(ctx context.Context, name, description string, maxAgents int) (*models.Channel, error)
	ChannelByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	ChannelByName(ctx context.Context, name string) (*models.Channel, error)
	ListChannels(ctx context.Context, limit, offset int) ([]models.ChannelSummary, int, error)
	DeactivateChannel(ctx context.Context, id uuid.UUID) error
	AgentCount(ctx context.Context, channelID uuid.UUID) (int, error)

	// Agents. InsertAgent performs the capacity check and the row insert
	// as one atomic unit and records joined_at server-side.
	InsertAgent(ctx context.Context, channelID uuid.UUID, username, roleDescription string) (*models.Agent, error)
	DeleteAgent(ctx context.Context, channelID, agentID uuid.UUID) error
	ListAgents(ctx context.Context, channelID uuid.UUID) ([]models.Agent, error)
	AgentInChannel(ctx context.Context, channelID, agentID uuid.UUID) (*models.Agent, error)
	AgentByUsername(ctx context.Context, channelID uuid.UUID, username string) (*models.Agent, error)

	// Messages. AppendMessage assigns the next per-channel sequence number
	// with an atomic read-and-increment and writes the message row, its
	// mention rows, and the sender's own read receipt in one transaction.
	AppendMessage(ctx context.Context, channelID, agentID uuid.UUID, content string, mentions []string) (*models.Message, error)

	// UnreadMessages returns messages the agent has not read whose
	// created_at is at or after the agent's join time, oldest first, and
	// marks exactly the returned set read within the same transaction.
	UnreadMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]models.MessageView, error)

	// HistoryMessages returns up to limit messages ending at the newest
	// (or at beforeSequence when > 0), ascending, and marks any of them
	// not yet read by the agent. joinFloor additionally hides messages
	// that predate the agent's join.
	HistoryMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int, beforeSequence int64, joinFloor bool) ([]models.MessageView, error)

	// AgentMessages returns the newest messages authored by the given
	// agent, ascending. Read state is not touched.
	AgentMessages(ctx context.Context, channelID, authorID uuid.UUID, limit int) ([]models.MessageView, error)

	// MentionMessages returns the newest messages mentioning username,
	// ascending, and marks them read for the requesting agent.
	MentionMessages(ctx context.Context, channelID, agentID uuid.UUID, username string, limit int) ([]models.MessageView, error)

	// ChannelMessages is a read-only peek at the newest messages,
	// ascending. Read state is not touched.
	ChannelMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]models.MessageView, error)

	// Read ledger.
	MarkRead(ctx context.Context, agentID uuid.UUID, messageIDs []string) error
	ReadersOf(ctx context.Context, messageID string) ([]models.ReadReceipt, error)
}
