package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thiagovictorino/chat-mcp/internal/chat"
	"github.com/thiagovictorino/chat-mcp/internal/ids"
	"github.com/thiagovictorino/chat-mcp/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool
// and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS channels (
		channel_id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		max_agents INTEGER NOT NULL DEFAULT 50,
		last_sequence BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS agents (
		agent_id UUID PRIMARY KEY,
		channel_id UUID NOT NULL REFERENCES channels(channel_id) ON DELETE CASCADE,
		username TEXT NOT NULL,
		role_description TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL,
		UNIQUE(channel_id, username)
	);

	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		channel_id UUID NOT NULL REFERENCES channels(channel_id) ON DELETE CASCADE,
		agent_id UUID NOT NULL REFERENCES agents(agent_id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		sequence_number BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE(channel_id, sequence_number)
	);

	CREATE TABLE IF NOT EXISTS message_mentions (
		message_id TEXT NOT NULL REFERENCES messages(message_id) ON DELETE CASCADE,
		mentioned_username TEXT NOT NULL,
		PRIMARY KEY (message_id, mentioned_username)
	);

	CREATE TABLE IF NOT EXISTS read_status (
		agent_id UUID NOT NULL REFERENCES agents(agent_id) ON DELETE CASCADE,
		message_id TEXT NOT NULL REFERENCES messages(message_id) ON DELETE CASCADE,
		read_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (agent_id, message_id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_active_name
		ON channels(name) WHERE is_active;
	CREATE INDEX IF NOT EXISTS idx_messages_channel_sequence
		ON messages(channel_id, sequence_number DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_agent ON messages(agent_id);
	CREATE INDEX IF NOT EXISTS idx_read_status_agent ON read_status(agent_id);
	CREATE INDEX IF NOT EXISTS idx_agents_channel ON agents(channel_id);
	CREATE INDEX IF NOT EXISTS idx_mentions_username
		ON message_mentions(mentioned_username);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// mapPgErr translates Postgres error codes into tagged chat errors.
// 23505 is unique_violation; 40001 and 40P01 are serialization failure
// and deadlock, both safe to retry.
func mapPgErr(err error, conflictMsg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return chat.Conflictf("%s", conflictMsg)
		case "40001", "40P01":
			return chat.Concurrencyf("transaction conflict: %v", err)
		}
	}
	return err
}

// CreateChannel creates a new active channel.
func (s *PostgresStore) CreateChannel(ctx context.Context, name, description string, maxAgents int) (*models.Channel, error) {
	ch := &models.Channel{
		ID:          ids.NewChannelID(),
		Name:        name,
		Description: description,
		MaxAgents:   maxAgents,
		CreatedAt:   time.Now().UTC(),
		Active:      true,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO channels (channel_id, name, description, max_agents, last_sequence, created_at, is_active)
		VALUES ($1, $2, $3, $4, 0, $5, TRUE)
	`, ch.ID, name, description, maxAgents, ch.CreatedAt)
	if err != nil {
		return nil, mapPgErr(err, "channel '"+name+"' already exists")
	}
	return ch, nil
}

// scanPgChannel scans one channel row.
func scanPgChannel(row pgx.Row) (*models.Channel, error) {
	ch := &models.Channel{}
	err := row.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.MaxAgents, &ch.CreatedAt, &ch.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ch, nil
}

// ChannelByID retrieves an active channel by ID.
func (s *PostgresStore) ChannelByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	return scanPgChannel(s.pool.QueryRow(ctx, `
		SELECT channel_id, name, description, max_agents, created_at, is_active
		FROM channels WHERE channel_id = $1 AND is_active
	`, id))
}

// ChannelByName retrieves an active channel by name.
func (s *PostgresStore) ChannelByName(ctx context.Context, name string) (*models.Channel, error) {
	return scanPgChannel(s.pool.QueryRow(ctx, `
		SELECT channel_id, name, description, max_agents, created_at, is_active
		FROM channels WHERE name = $1 AND is_active
	`, name))
}

// ListChannels retrieves active channels with live agent counts, oldest
// first, plus the total number of active channels.
func (s *PostgresStore) ListChannels(ctx context.Context, limit, offset int) ([]models.ChannelSummary, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels WHERE is_active`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT c.channel_id, c.name, c.description, c.max_agents, c.created_at, c.is_active,
		       (SELECT COUNT(*) FROM agents a WHERE a.channel_id = c.channel_id) AS agent_count
		FROM channels c
		WHERE c.is_active
		ORDER BY c.created_at ASC, c.channel_id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var channels []models.ChannelSummary
	for rows.Next() {
		var cs models.ChannelSummary
		err := rows.Scan(&cs.ID, &cs.Name, &cs.Description, &cs.MaxAgents, &cs.CreatedAt, &cs.Active, &cs.AgentCount)
		if err != nil {
			return nil, 0, err
		}
		channels = append(channels, cs)
	}
	return channels, total, rows.Err()
}

// DeactivateChannel soft-deletes a channel.
func (s *PostgresStore) DeactivateChannel(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE channels SET is_active = FALSE WHERE channel_id = $1 AND is_active
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chat.NotFoundf("channel not found")
	}
	return nil
}

// AgentCount returns the number of agents currently in a channel.
func (s *PostgresStore) AgentCount(ctx context.Context, channelID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM agents WHERE channel_id = $1
	`, channelID).Scan(&count)
	return count, err
}

// InsertAgent admits an agent into a channel. The channel row is locked
// for the duration of the transaction, making the capacity check atomic
// with the insert.
func (s *PostgresStore) InsertAgent(ctx context.Context, channelID uuid.UUID, username, roleDescription string) (*models.Agent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var maxAgents int
	var channelName string
	err = tx.QueryRow(ctx, `
		SELECT max_agents, name FROM channels
		WHERE channel_id = $1 AND is_active
		FOR UPDATE
	`, channelID).Scan(&maxAgents, &channelName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.NotFoundf("channel not found")
		}
		return nil, err
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM agents WHERE channel_id = $1
	`, channelID).Scan(&count)
	if err != nil {
		return nil, err
	}
	if count >= maxAgents {
		return nil, chat.Capacityf("channel '%s' is at maximum capacity (%d agents)", channelName, maxAgents)
	}

	agent := &models.Agent{
		ID:              ids.NewAgentID(),
		ChannelID:       channelID,
		Username:        username,
		RoleDescription: roleDescription,
		JoinedAt:        time.Now().UTC(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO agents (agent_id, channel_id, username, role_description, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, agent.ID, channelID, username, roleDescription, agent.JoinedAt)
	if err != nil {
		return nil, mapPgErr(err, "username '"+username+"' already exists in this channel")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgErr(err, "")
	}
	return agent, nil
}

// DeleteAgent removes an agent from a channel.
func (s *PostgresStore) DeleteAgent(ctx context.Context, channelID, agentID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM agents WHERE agent_id = $1 AND channel_id = $2
	`, agentID, channelID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return chat.NotFoundf("agent not found in channel")
	}
	return nil
}

// ListAgents retrieves all agents in a channel, oldest join first.
func (s *PostgresStore) ListAgents(ctx context.Context, channelID uuid.UUID) ([]models.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT agent_id, channel_id, username, role_description, joined_at
		FROM agents
		WHERE channel_id = $1
		ORDER BY joined_at ASC, agent_id ASC
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.ChannelID, &a.Username, &a.RoleDescription, &a.JoinedAt); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// scanPgAgent scans one agent row.
func scanPgAgent(row pgx.Row) (*models.Agent, error) {
	a := &models.Agent{}
	err := row.Scan(&a.ID, &a.ChannelID, &a.Username, &a.RoleDescription, &a.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// AgentInChannel retrieves an agent by ID within a channel.
func (s *PostgresStore) AgentInChannel(ctx context.Context, channelID, agentID uuid.UUID) (*models.Agent, error) {
	return scanPgAgent(s.pool.QueryRow(ctx, `
		SELECT agent_id, channel_id, username, role_description, joined_at
		FROM agents WHERE agent_id = $1 AND channel_id = $2
	`, agentID, channelID))
}

// AgentByUsername retrieves an agent by username within a channel.
func (s *PostgresStore) AgentByUsername(ctx context.Context, channelID uuid.UUID, username string) (*models.Agent, error) {
	return scanPgAgent(s.pool.QueryRow(ctx, `
		SELECT agent_id, channel_id, username, role_description, joined_at
		FROM agents WHERE channel_id = $1 AND username = $2
	`, channelID, username))
}

// AppendMessage commits a message to the channel log. The counter bump is
// a single UPDATE ... RETURNING, so the row lock it takes serializes
// sequence assignment per channel for the rest of the transaction.
func (s *PostgresStore) AppendMessage(ctx context.Context, channelID, agentID uuid.UUID, content string, mentions []string) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var seq int64
	err = tx.QueryRow(ctx, `
		UPDATE channels SET last_sequence = last_sequence + 1
		WHERE channel_id = $1 AND is_active
		RETURNING last_sequence
	`, channelID).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.NotFoundf("channel not found")
		}
		return nil, mapPgErr(err, "")
	}

	msg := &models.Message{
		ID:             ids.NewMessageID(),
		ChannelID:      channelID,
		AgentID:        agentID,
		Content:        content,
		SequenceNumber: seq,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (message_id, channel_id, agent_id, content, sequence_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, channelID, agentID, content, seq, msg.CreatedAt)
	if err != nil {
		return nil, mapPgErr(err, "")
	}

	for _, username := range mentions {
		_, err = tx.Exec(ctx, `
			INSERT INTO message_mentions (message_id, mentioned_username)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, msg.ID, username)
		if err != nil {
			return nil, mapPgErr(err, "")
		}
	}

	// A send implies consumption by its author.
	_, err = tx.Exec(ctx, `
		INSERT INTO read_status (agent_id, message_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, agentID, msg.ID, msg.CreatedAt)
	if err != nil {
		return nil, mapPgErr(err, "")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgErr(err, "")
	}
	return msg, nil
}

// pgQueryer abstracts *pgxpool.Pool and pgx.Tx for view assembly.
type pgQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// queryPgMessageRows runs a message query and drains it into a slice.
func queryPgMessageRows(ctx context.Context, q pgQueryer, query string, args ...any) ([]messageRow, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messageRow
	for rows.Next() {
		var m messageRow
		var agentID uuid.UUID
		if err := rows.Scan(&m.id, &agentID, &m.username, &m.content, &m.seq, &m.created); err != nil {
			return nil, err
		}
		m.agentID = agentID.String()
		out = append(out, m)
	}
	return out, rows.Err()
}

// buildPgViews enriches message rows with mentions and read receipts.
func buildPgViews(ctx context.Context, q pgQueryer, msgs []messageRow) ([]models.MessageView, error) {
	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.MessageView{
			ID: m.id,
			Sender: models.Sender{
				AgentID:  uuid.MustParse(m.agentID),
				Username: m.username,
			},
			Content:        m.content,
			CreatedAt:      m.created,
			SequenceNumber: m.seq,
			Mentions:       []string{},
			ReadBy:         []models.ReadReceipt{},
		}

		rows, err := q.Query(ctx, `
			SELECT mentioned_username FROM message_mentions
			WHERE message_id = $1 ORDER BY mentioned_username ASC
		`, m.id)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var username string
			if err := rows.Scan(&username); err != nil {
				rows.Close()
				return nil, err
			}
			view.Mentions = append(view.Mentions, username)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		rows, err = q.Query(ctx, `
			SELECT a.username, r.read_at
			FROM read_status r
			JOIN agents a ON r.agent_id = a.agent_id
			WHERE r.message_id = $1
			ORDER BY r.read_at ASC, a.username ASC
		`, m.id)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var rr models.ReadReceipt
			if err := rows.Scan(&rr.Username, &rr.ReadAt); err != nil {
				rows.Close()
				return nil, err
			}
			view.ReadBy = append(view.ReadBy, rr)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		views = append(views, view)
	}
	return views, nil
}

// markPgReadTx inserts read receipts for the given messages inside tx.
func markPgReadTx(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, msgs []messageRow) error {
	now := time.Now().UTC()
	for _, m := range msgs {
		_, err := tx.Exec(ctx, `
			INSERT INTO read_status (agent_id, message_id, read_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, agentID, m.id, now)
		if err != nil {
			return mapPgErr(err, "")
		}
	}
	return nil
}

const pgMessageSelect = `
	SELECT m.message_id, m.agent_id, a.username, m.content, m.sequence_number, m.created_at
	FROM messages m
	JOIN agents a ON m.agent_id = a.agent_id`

// readMarkTxOptions gives retrieve-and-mark transactions repeatable-read
// isolation so two concurrent unread calls by the same agent conflict
// instead of double-delivering; the conflict surfaces as a retryable
// concurrency error.
var readMarkTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead}

// UnreadMessages returns unread messages at or after the agent's join
// time, oldest first, and marks the returned set read in the same
// transaction.
func (s *PostgresStore) UnreadMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]models.MessageView, error) {
	tx, err := s.pool.BeginTx(ctx, readMarkTxOptions)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var joinedAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT joined_at FROM agents WHERE agent_id = $1 AND channel_id = $2
	`, agentID, channelID).Scan(&joinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.NotFoundf("agent not found in channel")
		}
		return nil, err
	}

	msgs, err := queryPgMessageRows(ctx, tx, pgMessageSelect+`
		WHERE m.channel_id = $1
		  AND m.created_at >= $2
		  AND NOT EXISTS (
			SELECT 1 FROM read_status r
			WHERE r.agent_id = $3 AND r.message_id = m.message_id
		  )
		ORDER BY m.sequence_number ASC
		LIMIT $4
	`, channelID, joinedAt, agentID, limit)
	if err != nil {
		return nil, err
	}

	views, err := buildPgViews(ctx, tx, msgs)
	if err != nil {
		return nil, err
	}

	if err := markPgReadTx(ctx, tx, agentID, msgs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgErr(err, "")
	}
	return views, nil
}

// HistoryMessages returns a backward-paginated page of the channel log in
// ascending order and marks any unread messages in the page read.
func (s *PostgresStore) HistoryMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int, beforeSequence int64, joinFloor bool) ([]models.MessageView, error) {
	tx, err := s.pool.BeginTx(ctx, readMarkTxOptions)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var joinedAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT joined_at FROM agents WHERE agent_id = $1 AND channel_id = $2
	`, agentID, channelID).Scan(&joinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.NotFoundf("agent not found in channel")
		}
		return nil, err
	}

	query := pgMessageSelect + ` WHERE m.channel_id = $1`
	args := []any{channelID}
	if beforeSequence > 0 {
		args = append(args, beforeSequence)
		query += ` AND m.sequence_number < $2`
	}
	if joinFloor {
		args = append(args, joinedAt)
		if beforeSequence > 0 {
			query += ` AND m.created_at >= $3`
		} else {
			query += ` AND m.created_at >= $2`
		}
	}
	args = append(args, limit)
	switch len(args) {
	case 2:
		query += ` ORDER BY m.sequence_number DESC LIMIT $2`
	case 3:
		query += ` ORDER BY m.sequence_number DESC LIMIT $3`
	default:
		query += ` ORDER BY m.sequence_number DESC LIMIT $4`
	}

	msgs, err := queryPgMessageRows(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)

	views, err := buildPgViews(ctx, tx, msgs)
	if err != nil {
		return nil, err
	}

	if err := markPgReadTx(ctx, tx, agentID, msgs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgErr(err, "")
	}
	return views, nil
}

// AgentMessages returns the newest messages authored by one agent,
// ascending. Read state is untouched.
func (s *PostgresStore) AgentMessages(ctx context.Context, channelID, authorID uuid.UUID, limit int) ([]models.MessageView, error) {
	msgs, err := queryPgMessageRows(ctx, s.pool, pgMessageSelect+`
		WHERE m.channel_id = $1 AND m.agent_id = $2
		ORDER BY m.sequence_number DESC
		LIMIT $3
	`, channelID, authorID, limit)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)
	return buildPgViews(ctx, s.pool, msgs)
}

// MentionMessages returns the newest messages mentioning username,
// ascending, and marks them read for the requesting agent.
func (s *PostgresStore) MentionMessages(ctx context.Context, channelID, agentID uuid.UUID, username string, limit int) ([]models.MessageView, error) {
	tx, err := s.pool.BeginTx(ctx, readMarkTxOptions)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	msgs, err := queryPgMessageRows(ctx, tx, pgMessageSelect+`
		JOIN message_mentions mm ON mm.message_id = m.message_id
		WHERE m.channel_id = $1 AND mm.mentioned_username = $2
		ORDER BY m.sequence_number DESC
		LIMIT $3
	`, channelID, username, limit)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)

	views, err := buildPgViews(ctx, tx, msgs)
	if err != nil {
		return nil, err
	}

	if err := markPgReadTx(ctx, tx, agentID, msgs); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgErr(err, "")
	}
	return views, nil
}

// ChannelMessages is a read-only peek at the newest messages, ascending.
func (s *PostgresStore) ChannelMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]models.MessageView, error) {
	msgs, err := queryPgMessageRows(ctx, s.pool, pgMessageSelect+`
		WHERE m.channel_id = $1
		ORDER BY m.sequence_number DESC
		LIMIT $2
	`, channelID, limit)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)
	return buildPgViews(ctx, s.pool, msgs)
}

// MarkRead inserts read receipts for the given messages, ignoring pairs
// that already have one.
func (s *PostgresStore) MarkRead(ctx context.Context, agentID uuid.UUID, messageIDs []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, id := range messageIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO read_status (agent_id, message_id, read_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, agentID, id, now)
		if err != nil {
			return mapPgErr(err, "")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgErr(err, "")
	}
	return nil
}

// ReadersOf returns the agents that have read a message, earliest first.
func (s *PostgresStore) ReadersOf(ctx context.Context, messageID string) ([]models.ReadReceipt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.username, r.read_at
		FROM read_status r
		JOIN agents a ON r.agent_id = a.agent_id
		WHERE r.message_id = $1
		ORDER BY r.read_at ASC, a.username ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := []models.ReadReceipt{}
	for rows.Next() {
		var rr models.ReadReceipt
		if err := rows.Scan(&rr.Username, &rr.ReadAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, rr)
	}
	return receipts, rows.Err()
}
