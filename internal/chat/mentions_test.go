package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "no mentions",
			content: "just a plain message",
			want:    nil,
		},
		{
			name:    "single mention",
			content: "hey @alice, take a look",
			want:    []string{"alice"},
		},
		{
			name:    "multiple mentions keep order",
			content: "@bob then @alice then @carol",
			want:    []string{"bob", "alice", "carol"},
		},
		{
			name:    "duplicates collapse to first occurrence",
			content: "@alice ping @bob ping @alice again",
			want:    []string{"alice", "bob"},
		},
		{
			name:    "underscores and hyphens are part of the name",
			content: "ask @data_agent-2 about it",
			want:    []string{"data_agent-2"},
		},
		{
			name:    "punctuation terminates the name",
			content: "thanks @alice! and @bob.",
			want:    []string{"alice", "bob"},
		},
		{
			name:    "mention at start and end",
			content: "@first middle @last",
			want:    []string{"first", "last"},
		},
		{
			name:    "bare at sign is not a mention",
			content: "meet @ noon",
			want:    nil,
		},
		{
			name:    "email-like text still matches the local token",
			content: "mail me at ops@example-host",
			want:    []string{"example-host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.content))
		})
	}
}
