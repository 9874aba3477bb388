package chat_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagovictorino/chat-mcp/internal/chat"
	"github.com/thiagovictorino/chat-mcp/internal/models"
	"github.com/thiagovictorino/chat-mcp/internal/store"
)

func newTestService(t *testing.T, opts chat.Options) (*chat.Service, chat.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return chat.NewService(st, zerolog.Nop(), opts), st
}

func mustChannel(t *testing.T, svc *chat.Service, name string, maxAgents int) *models.Channel {
	t.Helper()
	ch, err := svc.Channels.Create(context.Background(), name, "test channel", maxAgents)
	require.NoError(t, err)
	return ch
}

func mustJoin(t *testing.T, svc *chat.Service, channelID uuid.UUID, username string) *models.Agent {
	t.Helper()
	agent, err := svc.Agents.Join(context.Background(), channelID, username, "a test agent with a role")
	require.NoError(t, err)
	return agent
}

func mustSend(t *testing.T, svc *chat.Service, channelID, agentID uuid.UUID, content string) *models.Message {
	t.Helper()
	msg, err := svc.Messages.Append(context.Background(), channelID, agentID, content)
	require.NoError(t, err)
	return msg
}

func TestChannelLifecycle(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()

	ch := mustChannel(t, svc, "planning", 0)
	assert.Equal(t, 50, ch.MaxAgents, "max_agents defaults to 50")
	assert.True(t, ch.Active)

	byID, err := svc.Channels.Get(ctx, ch.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ch.ID, byID.ID)

	byName, err := svc.Channels.Get(ctx, uuid.Nil, "planning")
	require.NoError(t, err)
	assert.Equal(t, ch.ID, byName.ID)

	// Active names are unique
	_, err = svc.Channels.Create(ctx, "planning", "", 0)
	assert.Equal(t, chat.KindConflict, chat.KindOf(err))

	// Deactivation hides the channel and frees its name
	require.NoError(t, svc.Channels.Deactivate(ctx, ch.ID))
	_, err = svc.Channels.Get(ctx, ch.ID, "")
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err))

	reborn, err := svc.Channels.Create(ctx, "planning", "", 0)
	require.NoError(t, err)
	assert.NotEqual(t, ch.ID, reborn.ID)
}

func TestChannelValidation(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()

	_, err := svc.Channels.Create(ctx, "", "", 0)
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))

	_, err = svc.Channels.Create(ctx, "capacity-low", "", 1)
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))

	_, err = svc.Channels.Create(ctx, "capacity-high", "", 101)
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))

	ch, err := svc.Channels.Create(ctx, "capacity-edge", "", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.MaxAgents)
}

func TestListChannels(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mustChannel(t, svc, fmt.Sprintf("channel-%d", i), 0)
	}

	page, err := svc.Channels.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page.Channels, 2)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)

	last, err := svc.Channels.List(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, last.Channels, 1)
	assert.False(t, last.HasMore)
}

func TestJoinValidation(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "join-rules", 0)

	_, err := svc.Agents.Join(ctx, ch.ID, "ab", "a perfectly valid role")
	assert.Equal(t, chat.KindValidation, chat.KindOf(err), "username too short")

	_, err = svc.Agents.Join(ctx, ch.ID, "bad name!", "a perfectly valid role")
	assert.Equal(t, chat.KindValidation, chat.KindOf(err), "username charset")

	_, err = svc.Agents.Join(ctx, ch.ID, "alice", "short")
	assert.Equal(t, chat.KindValidation, chat.KindOf(err), "role too short")

	mustJoin(t, svc, ch.ID, "alice")
	_, err = svc.Agents.Join(ctx, ch.ID, "alice", "another valid role here")
	assert.Equal(t, chat.KindConflict, chat.KindOf(err), "duplicate username")

	_, err = svc.Agents.Join(ctx, uuid.New(), "bob00", "another valid role here")
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err), "unknown channel")
}

func TestCapacityEnforcement(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "small-room", 2)

	alice := mustJoin(t, svc, ch.ID, "alice")
	mustJoin(t, svc, ch.ID, "bobby")

	_, err := svc.Agents.Join(ctx, ch.ID, "carol", "a third agent wanting in")
	assert.Equal(t, chat.KindCapacity, chat.KindOf(err))

	// Leaving frees a slot immediately
	require.NoError(t, svc.Agents.Leave(ctx, ch.ID, alice.ID))
	mustJoin(t, svc, ch.ID, "carol")
}

func TestSendAssignsContiguousSequence(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ch := mustChannel(t, svc, "ordered", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	for i := 1; i <= 5; i++ {
		msg := mustSend(t, svc, ch.ID, alice.ID, fmt.Sprintf("message %d", i))
		assert.Equal(t, int64(i), msg.SequenceNumber)
	}
}

func TestSendValidation(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "send-rules", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	_, err := svc.Messages.Append(ctx, ch.ID, alice.ID, "")
	assert.Equal(t, chat.KindValidation, chat.KindOf(err), "empty content")

	long := make([]byte, 4001)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Messages.Append(ctx, ch.ID, alice.ID, string(long))
	assert.Equal(t, chat.KindValidation, chat.KindOf(err), "content too long")

	_, err = svc.Messages.Append(ctx, ch.ID, uuid.New(), "hello")
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err), "sender not a member")
}

func TestUnreadExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "inbox", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")
	bob := mustJoin(t, svc, ch.ID, "bobby")

	mustSend(t, svc, ch.ID, alice.ID, "first")
	mustSend(t, svc, ch.ID, alice.ID, "second")

	views, err := svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "first", views[0].Content)
	assert.Equal(t, "second", views[1].Content)
	assert.Less(t, views[0].SequenceNumber, views[1].SequenceNumber)

	// Delivery marked them read; a second call returns nothing
	again, err := svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, again)

	// Only what arrived in between shows up next
	mustSend(t, svc, ch.ID, alice.ID, "third")
	next, err := svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "third", next[0].Content)
}

func TestSenderNeverSeesOwnMessagesAsUnread(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "own-echo", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	mustSend(t, svc, ch.ID, alice.ID, "talking to myself")

	views, err := svc.Ledger.Unread(ctx, ch.ID, alice.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestUnreadRespectsJoinFloor(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "late-joiner", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	mustSend(t, svc, ch.ID, alice.ID, "before bob")

	bob := mustJoin(t, svc, ch.ID, "bobby")
	mustSend(t, svc, ch.ID, alice.ID, "after bob")

	views, err := svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "after bob", views[0].Content)
}

func TestHistoryShowsFullLogByDefault(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "archive", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	mustSend(t, svc, ch.ID, alice.ID, "ancient history")

	bob := mustJoin(t, svc, ch.ID, "bobby")

	views, err := svc.Messages.History(ctx, ch.ID, bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "ancient history", views[0].Content)

	// History delivery counts as reading
	unread, err := svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestHistoryJoinFloorOption(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{HistoryJoinFloor: true})
	ctx := context.Background()
	ch := mustChannel(t, svc, "walled-archive", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	mustSend(t, svc, ch.ID, alice.ID, "before bob")
	bob := mustJoin(t, svc, ch.ID, "bobby")
	mustSend(t, svc, ch.ID, alice.ID, "after bob")

	views, err := svc.Messages.History(ctx, ch.ID, bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "after bob", views[0].Content)
}

func TestHistoryPaging(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "paged", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	for i := 1; i <= 10; i++ {
		mustSend(t, svc, ch.ID, alice.ID, fmt.Sprintf("msg %d", i))
	}

	newest, err := svc.Messages.History(ctx, ch.ID, alice.ID, 3, 0)
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, int64(8), newest[0].SequenceNumber)
	assert.Equal(t, int64(10), newest[2].SequenceNumber)

	older, err := svc.Messages.History(ctx, ch.ID, alice.ID, 3, newest[0].SequenceNumber)
	require.NoError(t, err)
	require.Len(t, older, 3)
	assert.Equal(t, int64(5), older[0].SequenceNumber)
	assert.Equal(t, int64(7), older[2].SequenceNumber)
}

func TestUnknownMentionAbortsSend(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "strict-mentions", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	_, err := svc.Messages.Append(ctx, ch.ID, alice.ID, "hello @nobody")
	require.Error(t, err)
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))
	assert.Contains(t, err.Error(), "@nobody not found in channel")

	// The failed send consumed nothing
	msg := mustSend(t, svc, ch.ID, alice.ID, "hello world")
	assert.Equal(t, int64(1), msg.SequenceNumber)
}

func TestMentionDelivery(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "mention-feed", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")
	bob := mustJoin(t, svc, ch.ID, "bobby")

	mustSend(t, svc, ch.ID, alice.ID, "no mention here")
	mustSend(t, svc, ch.ID, alice.ID, "ping @bobby please")

	views, err := svc.Messages.Mentioning(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "ping @bobby please", views[0].Content)
	assert.Equal(t, []string{"bobby"}, views[0].Mentions)

	// Mention delivery marks the message read
	unread, err := svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "no mention here", unread[0].Content)
}

func TestByAgent(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "per-author", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")
	bob := mustJoin(t, svc, ch.ID, "bobby")

	mustSend(t, svc, ch.ID, alice.ID, "from alice")
	mustSend(t, svc, ch.ID, bob.ID, "from bob")

	views, err := svc.Messages.ByAgent(ctx, ch.ID, "alice", 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "from alice", views[0].Content)
	assert.Equal(t, "alice", views[0].Sender.Username)

	_, err = svc.Messages.ByAgent(ctx, ch.ID, "ghost", 0)
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err))
}

func TestPeekDoesNotMarkRead(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "observer", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")
	bob := mustJoin(t, svc, ch.ID, "bobby")

	mustSend(t, svc, ch.ID, alice.ID, "observed")

	peeked, err := svc.Messages.Peek(ctx, ch.ID, 0)
	require.NoError(t, err)
	require.Len(t, peeked, 1)

	unread, err := svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 1, "peek must not consume bob's unread")
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "receipts", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")
	bob := mustJoin(t, svc, ch.ID, "bobby")

	msg := mustSend(t, svc, ch.ID, alice.ID, "read me")

	require.NoError(t, svc.Ledger.MarkRead(ctx, bob.ID, []string{msg.ID}))
	readers, err := svc.Ledger.ReadersOf(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, readers, 2, "sender receipt plus bob")

	require.NoError(t, svc.Ledger.MarkRead(ctx, bob.ID, []string{msg.ID}))

	after, err := svc.Ledger.ReadersOf(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, readers, after, "first read_at wins")
}

func TestLeaveRemovesAuthoredMessages(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "departures", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")
	bob := mustJoin(t, svc, ch.ID, "bobby")

	mustSend(t, svc, ch.ID, alice.ID, "alice says hi")
	mustSend(t, svc, ch.ID, bob.ID, "bob says hi")

	require.NoError(t, svc.Agents.Leave(ctx, ch.ID, bob.ID))

	views, err := svc.Messages.Peek(ctx, ch.ID, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "alice says hi", views[0].Content)
}

func TestTwoAgentConversation(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()

	ch := mustChannel(t, svc, "demo", 2)
	a1 := mustJoin(t, svc, ch.ID, "agent1")

	first := mustSend(t, svc, ch.ID, a1.ID, "hello")
	assert.Equal(t, int64(1), first.SequenceNumber)

	a2 := mustJoin(t, svc, ch.ID, "agent2")

	unread, err := svc.Ledger.Unread(ctx, ch.ID, a2.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, unread, "message predates agent2's join")

	second := mustSend(t, svc, ch.ID, a1.ID, "hi @agent2")
	assert.Equal(t, int64(2), second.SequenceNumber)

	unread, err = svc.Ledger.Unread(ctx, ch.ID, a2.ID, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "hi @agent2", unread[0].Content)
	assert.Equal(t, int64(2), unread[0].SequenceNumber)
	assert.Equal(t, []string{"agent2"}, unread[0].Mentions)

	unread, err = svc.Ledger.Unread(ctx, ch.ID, a2.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	history, err := svc.Messages.History(ctx, ch.ID, a2.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].SequenceNumber)
	assert.Equal(t, int64(2), history[1].SequenceNumber)

	// History marked the pre-join message read for agent2
	readers, err := svc.Ledger.ReadersOf(ctx, first.ID)
	require.NoError(t, err)
	usernames := make([]string, len(readers))
	for i, r := range readers {
		usernames[i] = r.Username
	}
	assert.ElementsMatch(t, []string{"agent1", "agent2"}, usernames)
}

func TestConcurrentAppendsGetDistinctContiguousSequences(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "contended", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []int64
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var msg *models.Message
			err := chat.Retry(ctx, func() error {
				var err error
				msg, err = svc.Messages.Append(ctx, ch.ID, alice.ID, fmt.Sprintf("concurrent %d", i))
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seqs = append(seqs, msg.SequenceNumber)
		}(i)
	}
	wg.Wait()
	require.Empty(t, errs)

	require.Len(t, seqs, n)
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq, "sequences must be exactly 1..n with no gaps or duplicates")
	}
}

func TestConcurrentUnreadDeliversEachMessageOnce(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()
	ch := mustChannel(t, svc, "racing-readers", 0)
	alice := mustJoin(t, svc, ch.ID, "alice")
	bob := mustJoin(t, svc, ch.ID, "bobby")

	const n = 10
	for i := 0; i < n; i++ {
		mustSend(t, svc, ch.ID, alice.ID, fmt.Sprintf("msg %d", i))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total []string
		errs  []error
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var views []models.MessageView
			err := chat.Retry(ctx, func() error {
				var err error
				views, err = svc.Ledger.Unread(ctx, ch.ID, bob.ID, 0)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			for _, v := range views {
				total = append(total, v.ID)
			}
		}()
	}
	wg.Wait()
	require.Empty(t, errs)

	seen := make(map[string]bool, len(total))
	for _, id := range total {
		assert.False(t, seen[id], "message %s delivered twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n, "every message delivered exactly once across readers")
}

func TestLengthLimitsCountCharactersNotBytes(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()

	// 100 CJK characters is 300 bytes and still a valid channel name.
	ch, err := svc.Channels.Create(ctx, strings.Repeat("会", 100), strings.Repeat("é", 500), 0)
	require.NoError(t, err)

	_, err = svc.Channels.Create(ctx, strings.Repeat("会", 101), "", 0)
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))

	agent, err := svc.Agents.Join(ctx, ch.ID, "reviewer", strings.Repeat("审", 200))
	require.NoError(t, err)

	_, err = svc.Agents.Join(ctx, ch.ID, "reviewer2", strings.Repeat("审", 201))
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))

	msg := mustSend(t, svc, ch.ID, agent.ID, strings.Repeat("語", 4000))
	assert.Equal(t, int64(1), msg.SequenceNumber)

	_, err = svc.Messages.Append(ctx, ch.ID, agent.ID, strings.Repeat("語", 4001))
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))
}

func TestCheckCapacity(t *testing.T) {
	svc, _ := newTestService(t, chat.Options{})
	ctx := context.Background()

	ch := mustChannel(t, svc, "standup", 2)
	require.NoError(t, svc.Channels.CheckCapacity(ctx, ch.ID))

	mustJoin(t, svc, ch.ID, "alice")
	require.NoError(t, svc.Channels.CheckCapacity(ctx, ch.ID))

	bob := mustJoin(t, svc, ch.ID, "bob")
	err := svc.Channels.CheckCapacity(ctx, ch.ID)
	assert.Equal(t, chat.KindCapacity, chat.KindOf(err))

	// Freed capacity is visible again.
	require.NoError(t, svc.Agents.Leave(ctx, ch.ID, bob.ID))
	require.NoError(t, svc.Channels.CheckCapacity(ctx, ch.ID))

	err = svc.Channels.CheckCapacity(ctx, uuid.New())
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err))
}
