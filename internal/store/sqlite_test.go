package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagovictorino/chat-mcp/internal/chat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	// Nested path exercises directory creation on open
	st, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteOpenAndPing(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLiteChannelNameReuseAfterDeactivate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch, err := st.CreateChannel(ctx, "ops", "operations", 50)
	require.NoError(t, err)

	_, err = st.CreateChannel(ctx, "ops", "duplicate", 50)
	assert.Equal(t, chat.KindConflict, chat.KindOf(err))

	require.NoError(t, st.DeactivateChannel(ctx, ch.ID))

	gone, err := st.ChannelByName(ctx, "ops")
	require.NoError(t, err)
	assert.Nil(t, gone, "inactive channels are invisible to name lookup")

	// The partial unique index only covers active rows
	_, err = st.CreateChannel(ctx, "ops", "second life", 50)
	require.NoError(t, err)
}

func TestSQLiteDeactivateUnknownChannel(t *testing.T) {
	st := newTestStore(t)
	err := st.DeactivateChannel(context.Background(), uuid.New())
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err))
}

func TestSQLiteAppendToUnknownChannel(t *testing.T) {
	st := newTestStore(t)
	_, err := st.AppendMessage(context.Background(), uuid.New(), uuid.New(), "hello", nil)
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err))
}

func TestSQLiteAppendWritesSenderReceipt(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch, err := st.CreateChannel(ctx, "receipts", "", 50)
	require.NoError(t, err)
	agent, err := st.InsertAgent(ctx, ch.ID, "alice", "a test agent with a role")
	require.NoError(t, err)

	msg, err := st.AppendMessage(ctx, ch.ID, agent.ID, "self-read on send", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.SequenceNumber)

	readers, err := st.ReadersOf(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, readers, 1)
	assert.Equal(t, "alice", readers[0].Username)
}

func TestSQLiteMentionRowsPersisted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch, err := st.CreateChannel(ctx, "mention-rows", "", 50)
	require.NoError(t, err)
	alice, err := st.InsertAgent(ctx, ch.ID, "alice", "a test agent with a role")
	require.NoError(t, err)
	_, err = st.InsertAgent(ctx, ch.ID, "bobby", "a test agent with a role")
	require.NoError(t, err)

	_, err = st.AppendMessage(ctx, ch.ID, alice.ID, "ping @bobby", []string{"bobby"})
	require.NoError(t, err)

	views, err := st.ChannelMessages(ctx, ch.ID, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, []string{"bobby"}, views[0].Mentions)
}

func TestSQLiteCapacityCheckedInJoinTransaction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch, err := st.CreateChannel(ctx, "tiny", "", 2)
	require.NoError(t, err)

	_, err = st.InsertAgent(ctx, ch.ID, "alice", "a test agent with a role")
	require.NoError(t, err)
	_, err = st.InsertAgent(ctx, ch.ID, "bobby", "a test agent with a role")
	require.NoError(t, err)

	_, err = st.InsertAgent(ctx, ch.ID, "carol", "a test agent with a role")
	assert.Equal(t, chat.KindCapacity, chat.KindOf(err))
}

func TestSQLiteSequenceSurvivesAuthorDeparture(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ch, err := st.CreateChannel(ctx, "gaps", "", 50)
	require.NoError(t, err)
	alice, err := st.InsertAgent(ctx, ch.ID, "alice", "a test agent with a role")
	require.NoError(t, err)
	bob, err := st.InsertAgent(ctx, ch.ID, "bobby", "a test agent with a role")
	require.NoError(t, err)

	_, err = st.AppendMessage(ctx, ch.ID, bob.ID, "bob's message", nil)
	require.NoError(t, err)

	// Bob's departure cascades his message away, but the channel counter
	// never rewinds
	require.NoError(t, st.DeleteAgent(ctx, ch.ID, bob.ID))

	msg, err := st.AppendMessage(ctx, ch.ID, alice.ID, "after bob left", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), msg.SequenceNumber)

	views, err := st.ChannelMessages(ctx, ch.ID, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "after bob left", views[0].Content)
}
