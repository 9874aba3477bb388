package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentIdentity(t *testing.T) {
	req := httptest.NewRequest("GET", "/channels/x/messages/new?agent_id=from-query", nil)
	assert.Equal(t, "from-query", AgentIdentity(req))

	req = httptest.NewRequest("POST", "/channels/x/messages", nil)
	req.Header.Set("X-Agent-ID", "from-header")
	assert.Equal(t, "from-header", AgentIdentity(req))

	// Query parameter wins over the header.
	req = httptest.NewRequest("GET", "/channels/x/mentions?agent_id=from-query", nil)
	req.Header.Set("X-Agent-ID", "from-header")
	assert.Equal(t, "from-query", AgentIdentity(req))

	assert.Empty(t, AgentIdentity(httptest.NewRequest("GET", "/channels", nil)))
}

func TestLoggerRecordsAgentIdentity(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(zerolog.New(&buf))(okHandler())

	req := httptest.NewRequest("GET", "/channels/abc/messages/new?agent_id=agent-1", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Contains(t, buf.String(), `"agent_id":"agent-1"`)
	require.Contains(t, buf.String(), `"status":200`)

	// Anonymous requests log no agent field.
	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/channels", nil))
	assert.NotContains(t, buf.String(), "agent_id")
}
