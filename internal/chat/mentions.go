package chat

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

// mentionRegex matches @username tokens inside message content.
var mentionRegex = regexp.MustCompile(`@([a-zA-Z0-9_-]+)`)

// ExtractMentions returns the usernames mentioned in content, in order of
// first appearance, without duplicates. Pure function, no side effects.
func ExtractMentions(content string) []string {
	matches := mentionRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		mentions = append(mentions, name)
	}
	return mentions
}

// MentionResolver validates extracted mentions against current channel
// membership.
type MentionResolver struct {
	directory *AgentDirectory
}

// NewMentionResolver creates a resolver over the given directory.
func NewMentionResolver(directory *AgentDirectory) *MentionResolver {
	return &MentionResolver{directory: directory}
}

// Validate checks every mentioned username against the channel membership.
// A single unknown mention fails the whole set; sends are all-or-nothing.
func (r *MentionResolver) Validate(ctx context.Context, channelID uuid.UUID, mentions []string) error {
	for _, username := range mentions {
		agent, err := r.directory.ResolveByUsername(ctx, channelID, username)
		if err != nil {
			return err
		}
		if agent == nil {
			return Validationf("mentioned agent @%s not found in channel", username)
		}
	}
	return nil
}
