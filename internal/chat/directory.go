package chat

import (
	"context"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thiagovictorino/chat-mcp/internal/models"
)

// usernameRegex constrains usernames to 3-50 alphanumeric characters,
// hyphens, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

const (
	minRoleDescription = 10
	maxRoleDescription = 200
)

// AgentDirectory owns per-channel membership: who is present, under which
// username, and since when.
type AgentDirectory struct {
	store Store
	log   zerolog.Logger
}

// NewAgentDirectory creates a directory backed by store.
func NewAgentDirectory(store Store, logger zerolog.Logger) *AgentDirectory {
	return &AgentDirectory{store: store, log: logger}
}

// Join admits an agent into a channel. The username must be unique within
// the channel and the channel must have free capacity; both conditions are
// enforced atomically with the insert. The recorded joined_at becomes the
// agent's visibility floor for unread queries.
func (d *AgentDirectory) Join(ctx context.Context, channelID uuid.UUID, username, roleDescription string) (*models.Agent, error) {
	if !usernameRegex.MatchString(username) {
		return nil, Validationf("username must be 3-50 alphanumeric characters (hyphens/underscores allowed)")
	}
	if n := utf8.RuneCountInString(roleDescription); n < minRoleDescription || n > maxRoleDescription {
		return nil, Validationf("role description must be %d-%d characters", minRoleDescription, maxRoleDescription)
	}

	agent, err := d.store.InsertAgent(ctx, channelID, username, roleDescription)
	if err != nil {
		return nil, err
	}

	d.log.Info().
		Str("agent_id", agent.ID.String()).
		Str("channel_id", channelID.String()).
		Str("username", username).
		Msg("agent joined channel")

	return agent, nil
}

// Leave removes an agent from a channel. Freed capacity is immediately
// visible to subsequent joins.
func (d *AgentDirectory) Leave(ctx context.Context, channelID, agentID uuid.UUID) error {
	if err := d.store.DeleteAgent(ctx, channelID, agentID); err != nil {
		return err
	}
	d.log.Info().
		Str("agent_id", agentID.String()).
		Str("channel_id", channelID.String()).
		Msg("agent left channel")
	return nil
}

// List returns all agents in a channel, oldest join first.
func (d *AgentDirectory) List(ctx context.Context, channelID uuid.UUID) ([]models.Agent, error) {
	ch, err := d.store.ChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, NotFoundf("channel not found")
	}
	return d.store.ListAgents(ctx, channelID)
}

// Resolve returns the member identified by agentID, or a not-found error
// when the agent is not present in the channel.
func (d *AgentDirectory) Resolve(ctx context.Context, channelID, agentID uuid.UUID) (*models.Agent, error) {
	agent, err := d.store.AgentInChannel(ctx, channelID, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, NotFoundf("agent not found in channel")
	}
	return agent, nil
}

// ResolveByUsername returns the member with the given username, or nil
// when no such member exists.
func (d *AgentDirectory) ResolveByUsername(ctx context.Context, channelID uuid.UUID, username string) (*models.Agent, error) {
	return d.store.AgentByUsername(ctx, channelID, username)
}
