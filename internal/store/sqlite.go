// Package store provides the persistent backends for the messaging core.
// SQLiteStore is the embedded default; PostgresStore serves deployments
// with an external database. Both implement chat.Store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/thiagovictorino/chat-mcp/internal/chat"
	"github.com/thiagovictorino/chat-mcp/internal/ids"
	"github.com/thiagovictorino/chat-mcp/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// _txlock=immediate makes every write transaction take the write lock
	// up front, so concurrent writers queue on busy_timeout instead of
	// failing mid-transaction.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS channels (
		channel_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		max_agents INTEGER NOT NULL DEFAULT 50,
		last_sequence INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS agents (
		agent_id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		username TEXT NOT NULL,
		role_description TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		FOREIGN KEY (channel_id) REFERENCES channels(channel_id) ON DELETE CASCADE,
		UNIQUE(channel_id, username)
	);

	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		content TEXT NOT NULL,
		sequence_number INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (channel_id) REFERENCES channels(channel_id) ON DELETE CASCADE,
		FOREIGN KEY (agent_id) REFERENCES agents(agent_id) ON DELETE CASCADE,
		UNIQUE(channel_id, sequence_number)
	);

	CREATE TABLE IF NOT EXISTS message_mentions (
		message_id TEXT NOT NULL,
		mentioned_username TEXT NOT NULL,
		FOREIGN KEY (message_id) REFERENCES messages(message_id) ON DELETE CASCADE,
		PRIMARY KEY (message_id, mentioned_username)
	);

	CREATE TABLE IF NOT EXISTS read_status (
		agent_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		read_at DATETIME NOT NULL,
		FOREIGN KEY (agent_id) REFERENCES agents(agent_id) ON DELETE CASCADE,
		FOREIGN KEY (message_id) REFERENCES messages(message_id) ON DELETE CASCADE,
		PRIMARY KEY (agent_id, message_id)
	);

	-- Channel names are unique among active channels only; a deactivated
	-- channel frees its name.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_active_name
		ON channels(name) WHERE is_active = 1;

	CREATE INDEX IF NOT EXISTS idx_messages_channel_sequence
		ON messages(channel_id, sequence_number DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_agent ON messages(agent_id);
	CREATE INDEX IF NOT EXISTS idx_read_status_agent ON read_status(agent_id);
	CREATE INDEX IF NOT EXISTS idx_agents_channel ON agents(channel_id);
	CREATE INDEX IF NOT EXISTS idx_mentions_username
		ON message_mentions(mentioned_username);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isConstraintErr reports whether err is a SQLite uniqueness/constraint
// violation.
func isConstraintErr(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// mapSQLiteErr converts driver-level lock contention into a retryable
// concurrency conflict and passes everything else through.
func mapSQLiteErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return chat.Concurrencyf("database busy: %v", err)
	}
	return err
}

// CreateChannel creates a new active channel.
func (s *SQLiteStore) CreateChannel(ctx context.Context, name, description string, maxAgents int) (*models.Channel, error) {
	id := ids.NewChannelID()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (channel_id, name, description, max_agents, last_sequence, created_at, is_active)
		VALUES (?, ?, ?, ?, 0, ?, 1)
	`, id.String(), name, description, maxAgents, now)
	if err != nil {
		if isConstraintErr(err) {
			return nil, chat.Conflictf("channel '%s' already exists", name)
		}
		return nil, mapSQLiteErr(err)
	}

	return &models.Channel{
		ID:          id,
		Name:        name,
		Description: description,
		MaxAgents:   maxAgents,
		CreatedAt:   now,
		Active:      true,
	}, nil
}

// scanChannel scans one channel row.
func scanChannel(row *sql.Row) (*models.Channel, error) {
	ch := &models.Channel{}
	var idStr string
	var isActiveInt int
	err := row.Scan(
		&idStr,
		&ch.Name,
		&ch.Description,
		&ch.MaxAgents,
		&ch.CreatedAt,
		&isActiveInt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapSQLiteErr(err)
	}
	ch.ID = uuid.MustParse(idStr)
	ch.Active = isActiveInt == 1
	return ch, nil
}

// ChannelByID retrieves an active channel by ID.
func (s *SQLiteStore) ChannelByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	return scanChannel(s.db.QueryRowContext(ctx, `
		SELECT channel_id, name, description, max_agents, created_at, is_active
		FROM channels WHERE channel_id = ? AND is_active = 1
	`, id.String()))
}

// ChannelByName retrieves an active channel by name.
func (s *SQLiteStore) ChannelByName(ctx context.Context, name string) (*models.Channel, error) {
	return scanChannel(s.db.QueryRowContext(ctx, `
		SELECT channel_id, name, description, max_agents, created_at, is_active
		FROM channels WHERE name = ? AND is_active = 1
	`, name))
}

// ListChannels retrieves active channels with live agent counts, oldest
// first, plus the total number of active channels.
func (s *SQLiteStore) ListChannels(ctx context.Context, limit, offset int) ([]models.ChannelSummary, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels WHERE is_active = 1`).Scan(&total)
	if err != nil {
		return nil, 0, mapSQLiteErr(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.channel_id, c.name, c.description, c.max_agents, c.created_at, c.is_active,
		       (SELECT COUNT(*) FROM agents a WHERE a.channel_id = c.channel_id) AS agent_count
		FROM channels c
		WHERE c.is_active = 1
		ORDER BY c.created_at ASC, c.channel_id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, mapSQLiteErr(err)
	}
	defer rows.Close()

	var channels []models.ChannelSummary
	for rows.Next() {
		var cs models.ChannelSummary
		var idStr string
		var isActiveInt int

		err := rows.Scan(
			&idStr,
			&cs.Name,
			&cs.Description,
			&cs.MaxAgents,
			&cs.CreatedAt,
			&isActiveInt,
			&cs.AgentCount,
		)
		if err != nil {
			return nil, 0, mapSQLiteErr(err)
		}

		cs.ID = uuid.MustParse(idStr)
		cs.Active = isActiveInt == 1
		channels = append(channels, cs)
	}

	return channels, total, rows.Err()
}

// DeactivateChannel soft-deletes a channel.
func (s *SQLiteStore) DeactivateChannel(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE channels SET is_active = 0 WHERE channel_id = ? AND is_active = 1
	`, id.String())
	if err != nil {
		return mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return chat.NotFoundf("channel not found")
	}
	return nil
}

// AgentCount returns the number of agents currently in a channel.
func (s *SQLiteStore) AgentCount(ctx context.Context, channelID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agents WHERE channel_id = ?
	`, channelID.String()).Scan(&count)
	return count, mapSQLiteErr(err)
}

// InsertAgent admits an agent into a channel. The capacity check and the
// row insert run in one immediate transaction, so a channel one short of
// its limit cannot admit two concurrent joiners.
func (s *SQLiteStore) InsertAgent(ctx context.Context, channelID uuid.UUID, username, roleDescription string) (*models.Agent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer tx.Rollback()

	var maxAgents int
	var channelName string
	err = tx.QueryRowContext(ctx, `
		SELECT max_agents, name FROM channels WHERE channel_id = ? AND is_active = 1
	`, channelID.String()).Scan(&maxAgents, &channelName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chat.NotFoundf("channel not found")
		}
		return nil, mapSQLiteErr(err)
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agents WHERE channel_id = ?
	`, channelID.String()).Scan(&count)
	if err != nil {
		return nil, mapSQLiteErr(err)
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agents (agent_id, channel_id, username, role_description, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`, agent.ID.String(), channelID.String(), username, roleDescription, agent.JoinedAt)
	if err != nil {
		if isConstraintErr(err) {
			return nil, chat.Conflictf("username '%s' already exists in this channel", username)
		}
		return nil, mapSQLiteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteErr(err)
	}
	return agent, nil
}

// DeleteAgent removes an agent from a channel. The agent's read receipts
// go with it via cascade.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, channelID, agentID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM agents WHERE agent_id = ? AND channel_id = ?
	`, agentID.String(), channelID.String())
	if err != nil {
		return mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return chat.NotFoundf("agent not found in channel")
	}
	return nil
}

// ListAgents retrieves all agents in a channel, oldest join first.
func (s *SQLiteStore) ListAgents(ctx context.Context, channelID uuid.UUID) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, channel_id, username, role_description, joined_at
		FROM agents
		WHERE channel_id = ?
		ORDER BY joined_at ASC, agent_id ASC
	`, channelID.String())
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		var idStr, chStr string
		if err := rows.Scan(&idStr, &chStr, &a.Username, &a.RoleDescription, &a.JoinedAt); err != nil {
			return nil, mapSQLiteErr(err)
		}
		a.ID = uuid.MustParse(idStr)
		a.ChannelID = uuid.MustParse(chStr)
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// scanAgentRow scans one agent row from a QueryRow result.
func scanAgentRow(row *sql.Row) (*models.Agent, error) {
	a := &models.Agent{}
	var idStr, chStr string
	err := row.Scan(&idStr, &chStr, &a.Username, &a.RoleDescription, &a.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapSQLiteErr(err)
	}
	a.ID = uuid.MustParse(idStr)
	a.ChannelID = uuid.MustParse(chStr)
	return a, nil
}

// AgentInChannel retrieves an agent by ID within a channel.
func (s *SQLiteStore) AgentInChannel(ctx context.Context, channelID, agentID uuid.UUID) (*models.Agent, error) {
	return scanAgentRow(s.db.QueryRowContext(ctx, `
		SELECT agent_id, channel_id, username, role_description, joined_at
		FROM agents WHERE agent_id = ? AND channel_id = ?
	`, agentID.String(), channelID.String()))
}

// AgentByUsername retrieves an agent by username within a channel.
func (s *SQLiteStore) AgentByUsername(ctx context.Context, channelID uuid.UUID, username string) (*models.Agent, error) {
	return scanAgentRow(s.db.QueryRowContext(ctx, `
		SELECT agent_id, channel_id, username, role_description, joined_at
		FROM agents WHERE channel_id = ? AND username = ?
	`, channelID.String(), username))
}

// AppendMessage commits a message to the channel log. The per-channel
// counter is bumped with an atomic read-and-increment inside the same
// transaction that writes the message row, its mention rows, and the
// sender's own read receipt. Nothing survives an abort.
func (s *SQLiteStore) AppendMessage(ctx context.Context, channelID, agentID uuid.UUID, content string, mentions []string) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE channels SET last_sequence = last_sequence + 1
		WHERE channel_id = ? AND is_active = 1
	`, channelID.String())
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, chat.NotFoundf("channel not found")
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT last_sequence FROM channels WHERE channel_id = ?
	`, channelID.String()).Scan(&seq)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}

	msg := &models.Message{
		ID:             ids.NewMessageID(),
		ChannelID:      channelID,
		AgentID:        agentID,
		Content:        content,
		SequenceNumber: seq,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (message_id, channel_id, agent_id, content, sequence_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, channelID.String(), agentID.String(), content, seq, msg.CreatedAt)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}

	for _, username := range mentions {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO message_mentions (message_id, mentioned_username)
			VALUES (?, ?)
		`, msg.ID, username)
		if err != nil {
			return nil, mapSQLiteErr(err)
		}
	}

	// A send implies consumption by its author.
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO read_status (agent_id, message_id, read_at)
		VALUES (?, ?, ?)
	`, agentID.String(), msg.ID, msg.CreatedAt)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteErr(err)
	}
	return msg, nil
}

// messageRow is a scanned message joined with its sender's username.
type messageRow struct {
	id       string
	agentID  string
	username string
	content  string
	seq      int64
	created  time.Time
}

// queryer abstracts *sql.DB and *sql.Tx for message queries and view
// assembly.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryMessageRows runs a message query and drains it into a slice so the
// transaction connection is free for follow-up queries.
func queryMessageRows(ctx context.Context, q queryer, query string, args ...any) ([]messageRow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var out []messageRow
	for rows.Next() {
		var m messageRow
		if err := rows.Scan(&m.id, &m.agentID, &m.username, &m.content, &m.seq, &m.created); err != nil {
			return nil, mapSQLiteErr(err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// buildViews enriches message rows with mentions and read receipts.
func buildViews(ctx context.Context, q queryer, msgs []messageRow) ([]models.MessageView, error) {
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

		mentions, err := queryStrings(ctx, q, `
			SELECT mentioned_username FROM message_mentions
			WHERE message_id = ? ORDER BY mentioned_username ASC
		`, m.id)
		if err != nil {
			return nil, err
		}
		view.Mentions = mentions

		receipts, err := queryReceipts(ctx, q, m.id)
		if err != nil {
			return nil, err
		}
		view.ReadBy = receipts

		views = append(views, view)
	}
	return views, nil
}

// queryStrings collects a single-column string result set.
func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, mapSQLiteErr(err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryReceipts collects the read receipts for one message.
func queryReceipts(ctx context.Context, q queryer, messageID string) ([]models.ReadReceipt, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.username, r.read_at
		FROM read_status r
		JOIN agents a ON r.agent_id = a.agent_id
		WHERE r.message_id = ?
		ORDER BY r.read_at ASC, a.username ASC
	`, messageID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	out := []models.ReadReceipt{}
	for rows.Next() {
		var rr models.ReadReceipt
		if err := rows.Scan(&rr.Username, &rr.ReadAt); err != nil {
			return nil, mapSQLiteErr(err)
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// markReadTx inserts read receipts for the given messages inside tx,
// ignoring pairs that already have one.
func markReadTx(ctx context.Context, tx *sql.Tx, agentID uuid.UUID, msgs []messageRow) error {
	now := time.Now().UTC()
	for _, m := range msgs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO read_status (agent_id, message_id, read_at)
			VALUES (?, ?, ?)
		`, agentID.String(), m.id, now)
		if err != nil {
			return mapSQLiteErr(err)
		}
	}
	return nil
}

// reverseRows flips a descending page into ascending order in place.
func reverseRows(msgs []messageRow) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

const messageSelect = `
	SELECT m.message_id, m.agent_id, a.username, m.content, m.sequence_number, m.created_at
	FROM messages m
	JOIN agents a ON m.agent_id = a.agent_id`

// UnreadMessages returns unread messages at or after the agent's join
// time, oldest first, and marks the returned set read in the same
// transaction. Two concurrent calls by the same agent never both deliver
// the same message.
func (s *SQLiteStore) UnreadMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int) ([]models.MessageView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer tx.Rollback()

	var joinedAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT joined_at FROM agents WHERE agent_id = ? AND channel_id = ?
	`, agentID.String(), channelID.String()).Scan(&joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chat.NotFoundf("agent not found in channel")
		}
		return nil, mapSQLiteErr(err)
	}

	msgs, err := queryMessageRows(ctx, tx, messageSelect+`
		WHERE m.channel_id = ?
		  AND m.created_at >= ?
		  AND NOT EXISTS (
			SELECT 1 FROM read_status r
			WHERE r.agent_id = ? AND r.message_id = m.message_id
		  )
		ORDER BY m.sequence_number ASC
		LIMIT ?
	`, channelID.String(), joinedAt, agentID.String(), limit)
	if err != nil {
		return nil, err
	}

	views, err := buildViews(ctx, tx, msgs)
	if err != nil {
		return nil, err
	}

	if err := markReadTx(ctx, tx, agentID, msgs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteErr(err)
	}
	return views, nil
}

// HistoryMessages returns a backward-paginated page of the channel log in
// ascending order and marks any unread messages in the page read.
func (s *SQLiteStore) HistoryMessages(ctx context.Context, channelID, agentID uuid.UUID, limit int, beforeSequence int64, joinFloor bool) ([]models.MessageView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer tx.Rollback()

	var joinedAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT joined_at FROM agents WHERE agent_id = ? AND channel_id = ?
	`, agentID.String(), channelID.String()).Scan(&joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chat.NotFoundf("agent not found in channel")
		}
		return nil, mapSQLiteErr(err)
	}

	query := messageSelect + ` WHERE m.channel_id = ?`
	args := []any{channelID.String()}
	if beforeSequence > 0 {
		query += ` AND m.sequence_number < ?`
		args = append(args, beforeSequence)
	}
	if joinFloor {
		query += ` AND m.created_at >= ?`
		args = append(args, joinedAt)
	}
	query += ` ORDER BY m.sequence_number DESC LIMIT ?`
	args = append(args, limit)

	msgs, err := queryMessageRows(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)

	views, err := buildViews(ctx, tx, msgs)
	if err != nil {
		return nil, err
	}

	if err := markReadTx(ctx, tx, agentID, msgs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteErr(err)
	}
	return views, nil
}

// AgentMessages returns the newest messages authored by one agent,
// ascending. Read state is untouched.
func (s *SQLiteStore) AgentMessages(ctx context.Context, channelID, authorID uuid.UUID, limit int) ([]models.MessageView, error) {
	msgs, err := queryMessageRows(ctx, s.db, messageSelect+`
		WHERE m.channel_id = ? AND m.agent_id = ?
		ORDER BY m.sequence_number DESC
		LIMIT ?
	`, channelID.String(), authorID.String(), limit)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)
	return buildViews(ctx, s.db, msgs)
}

// MentionMessages returns the newest messages mentioning username,
// ascending, and marks them read for the requesting agent.
func (s *SQLiteStore) MentionMessages(ctx context.Context, channelID, agentID uuid.UUID, username string, limit int) ([]models.MessageView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer tx.Rollback()

	msgs, err := queryMessageRows(ctx, tx, messageSelect+`
		JOIN message_mentions mm ON mm.message_id = m.message_id
		WHERE m.channel_id = ? AND mm.mentioned_username = ?
		ORDER BY m.sequence_number DESC
		LIMIT ?
	`, channelID.String(), username, limit)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)

	views, err := buildViews(ctx, tx, msgs)
	if err != nil {
		return nil, err
	}

	if err := markReadTx(ctx, tx, agentID, msgs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, mapSQLiteErr(err)
	}
	return views, nil
}

// ChannelMessages is a read-only peek at the newest messages, ascending.
func (s *SQLiteStore) ChannelMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]models.MessageView, error) {
	msgs, err := queryMessageRows(ctx, s.db, messageSelect+`
		WHERE m.channel_id = ?
		ORDER BY m.sequence_number DESC
		LIMIT ?
	`, channelID.String(), limit)
	if err != nil {
		return nil, err
	}
	reverseRows(msgs)
	return buildViews(ctx, s.db, msgs)
}

// MarkRead inserts read receipts for the given messages, ignoring pairs
// that already have one. The first read_at wins.
func (s *SQLiteStore) MarkRead(ctx context.Context, agentID uuid.UUID, messageIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, id := range messageIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO read_status (agent_id, message_id, read_at)
			VALUES (?, ?, ?)
		`, agentID.String(), id, now)
		if err != nil {
			return mapSQLiteErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// ReadersOf returns the agents that have read a message, earliest first.
func (s *SQLiteStore) ReadersOf(ctx context.Context, messageID string) ([]models.ReadReceipt, error) {
	return queryReceipts(ctx, s.db, messageID)
}
