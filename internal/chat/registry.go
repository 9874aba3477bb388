package chat

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thiagovictorino/chat-mcp/internal/models"
)

const (
	// DefaultMaxAgents is used when a channel is created without an
	// explicit capacity.
	DefaultMaxAgents = 50

	minChannelAgents = 2
	maxChannelAgents = 100
	maxChannelName   = 100
	maxDescription   = 500
)

// ChannelRegistry owns channel identity, capacity, and lifecycle.
type ChannelRegistry struct {
	store Store
	log   zerolog.Logger
}

// NewChannelRegistry creates a registry backed by store.
func NewChannelRegistry(store Store, logger zerolog.Logger) *ChannelRegistry {
	return &ChannelRegistry{store: store, log: logger}
}

// Create registers a new channel. The name must be 1-100 characters and
// unique among active channels; maxAgents must be within [2, 100].
// Pass maxAgents <= 0 for the default capacity.
func (r *ChannelRegistry) Create(ctx context.Context, name, description string, maxAgents int) (*models.Channel, error) {
	if maxAgents == 0 {
		maxAgents = DefaultMaxAgents
	}
	if n := utf8.RuneCountInString(name); n < 1 || n > maxChannelName {
		return nil, Validationf("channel name must be 1-%d characters", maxChannelName)
	}
	if utf8.RuneCountInString(description) > maxDescription {
		return nil, Validationf("description must be at most %d characters", maxDescription)
	}
	if maxAgents < minChannelAgents || maxAgents > maxChannelAgents {
		return nil, Validationf("max_agents must be between %d and %d", minChannelAgents, maxChannelAgents)
	}

	ch, err := r.store.CreateChannel(ctx, name, description, maxAgents)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("channel_id", ch.ID.String()).
		Str("name", ch.Name).
		Int("max_agents", ch.MaxAgents).
		Msg("channel created")

	return ch, nil
}

// Get looks up an active channel by ID or by name. Exactly one of id and
// name must be set (uuid.Nil and "" count as unset).
func (r *ChannelRegistry) Get(ctx context.Context, id uuid.UUID, name string) (*models.Channel, error) {
	byID := id != uuid.Nil
	byName := name != ""
	if byID == byName {
		return nil, Validationf("provide exactly one of channel_id or channel_name")
	}

	var (
		ch  *models.Channel
		err error
	)
	if byID {
		ch, err = r.store.ChannelByID(ctx, id)
	} else {
		ch, err = r.store.ChannelByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, NotFoundf("channel not found")
	}
	return ch, nil
}

// ChannelPage is one page of active channels.
type ChannelPage struct {
	Channels []models.ChannelSummary
	Total    int
	HasMore  bool
}

// List returns a page of active channels with their live agent counts.
func (r *ChannelRegistry) List(ctx context.Context, limit, offset int) (*ChannelPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	channels, total, err := r.store.ListChannels(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ChannelPage{
		Channels: channels,
		Total:    total,
		HasMore:  offset+len(channels) < total,
	}, nil
}

// Deactivate soft-deletes a channel. Once inactive the channel is never
// matched by lookups and its name becomes free for reuse.
func (r *ChannelRegistry) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeactivateChannel(ctx, id); err != nil {
		return err
	}
	r.log.Info().Str("channel_id", id.String()).Msg("channel deactivated")
	return nil
}

// CheckCapacity fails with a capacity error when the channel is full.
// This is a point-in-time check for callers; the race-free enforcement
// happens inside the join transaction.
func (r *ChannelRegistry) CheckCapacity(ctx context.Context, id uuid.UUID) error {
	ch, err := r.Get(ctx, id, "")
	if err != nil {
		return err
	}
	count, err := r.store.AgentCount(ctx, id)
	if err != nil {
		return err
	}
	if count >= ch.MaxAgents {
		return Capacityf("channel '%s' is at maximum capacity (%d agents)", ch.Name, ch.MaxAgents)
	}
	return nil
}
