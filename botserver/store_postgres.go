package botserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS clients (
	client_id    BIGSERIAL PRIMARY KEY,
	client_name  VARCHAR(255) NOT NULL UNIQUE,
	access_token VARCHAR(64)  NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS conversations (
	conversation_id BIGSERIAL PRIMARY KEY,
	client_id       BIGINT NOT NULL REFERENCES clients(client_id) ON DELETE CASCADE,
	start_time      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS messages (
	message_id      BIGSERIAL PRIMARY KEY,
	conversation_id BIGINT NOT NULL REFERENCES conversations(conversation_id) ON DELETE CASCADE,
	sender          VARCHAR(50) NOT NULL,
	content         TEXT NOT NULL,
	timestamp       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS intents (
	intent_id BIGSERIAL PRIMARY KEY,
	title     VARCHAR(255) NOT NULL,
	response  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS intent_variations (
	variation_id BIGSERIAL PRIMARY KEY,
	intent_id    BIGINT NOT NULL REFERENCES intents(intent_id) ON DELETE CASCADE,
	variation    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_intent_variations_variation ON intent_variations(variation);
`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings and creates the schema when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) CreateClient(ctx context.Context, name, token string) (*Client, error) {
	c := &Client{Name: name, AccessToken: token}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO clients (client_name, access_token) VALUES ($1, $2) RETURNING client_id, created_at`,
		name, token).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ClientByToken(ctx context.Context, token string) (*Client, error) {
	c := &Client{}
	err := s.db.QueryRowContext(ctx,
		`SELECT client_id, client_name, access_token, created_at FROM clients WHERE access_token = $1`,
		token).Scan(&c.ID, &c.Name, &c.AccessToken, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *PostgresStore) ClientByName(ctx context.Context, name string) (*Client, error) {
	c := &Client{}
	err := s.db.QueryRowContext(ctx,
		`SELECT client_id, client_name, access_token, created_at FROM clients WHERE client_name = $1`,
		name).Scan(&c.ID, &c.Name, &c.AccessToken, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *PostgresStore) SetClientToken(ctx context.Context, clientID int64, token string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET access_token = $1 WHERE client_id = $2`, token, clientID)
	if err != nil {
		return fmt.Errorf("update client token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, clientID int64) (*Conversation, error) {
	c := &Conversation{ClientID: clientID}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO conversations (client_id) VALUES ($1) RETURNING conversation_id, start_time`,
		clientID).Scan(&c.ID, &c.StartTime)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) LatestConversation(ctx context.Context, clientID int64) (*Conversation, error) {
	c := &Conversation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, client_id, start_time FROM conversations
		 WHERE client_id = $1 ORDER BY start_time DESC, conversation_id DESC LIMIT 1`,
		clientID).Scan(&c.ID, &c.ClientID, &c.StartTime)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (s *PostgresStore) HasMessageSince(ctx context.Context, conversationID int64, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE conversation_id = $1 AND timestamp > $2)`,
		conversationID, since).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) AddMessage(ctx context.Context, conversationID int64, sender Sender, content string) (*StoredMessage, error) {
	m := &StoredMessage{ConversationID: conversationID, Sender: sender, Content: content}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, sender, content) VALUES ($1, $2, $3) RETURNING message_id, timestamp`,
		conversationID, string(sender), content).Scan(&m.ID, &m.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) Messages(ctx context.Context, conversationID int64) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, conversation_id, sender, content, timestamp FROM messages
		 WHERE conversation_id = $1 ORDER BY timestamp, message_id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var sender string
		if err := rows.Scan(&m.ID, &m.ConversationID, &sender, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Sender = Sender(sender)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateIntent inserts the intent and its variations in one transaction.
func (s *PostgresStore) CreateIntent(ctx context.Context, title, response string, variations []string) (*Intent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	in := &Intent{Title: title, Response: response}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO intents (title, response) VALUES ($1, $2) RETURNING intent_id`,
		title, response).Scan(&in.ID); err != nil {
		return nil, fmt.Errorf("insert intent %q: %w", title, err)
	}
	for _, v := range variations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO intent_variations (intent_id, variation) VALUES ($1, $2)`, in.ID, v); err != nil {
			return nil, fmt.Errorf("insert variation %q: %w", v, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *PostgresStore) scanIntent(row *sql.Row) (*Intent, error) {
	in := &Intent{}
	if err := row.Scan(&in.ID, &in.Title, &in.Response); err != nil {
		return nil, notFound(err)
	}
	return in, nil
}

func (s *PostgresStore) IntentByTitle(ctx context.Context, title string) (*Intent, error) {
	return s.scanIntent(s.db.QueryRowContext(ctx,
		`SELECT intent_id, title, response FROM intents WHERE title = $1 ORDER BY intent_id LIMIT 1`, title))
}

func (s *PostgresStore) IntentByVariation(ctx context.Context, text string) (*Intent, error) {
	return s.scanIntent(s.db.QueryRowContext(ctx,
		`SELECT i.intent_id, i.title, i.response FROM intent_variations v
		 JOIN intents i ON i.intent_id = v.intent_id
		 WHERE v.variation = $1 ORDER BY v.variation_id LIMIT 1`, text))
}

func (s *PostgresStore) Intent(ctx context.Context, id int64) (*Intent, error) {
	return s.scanIntent(s.db.QueryRowContext(ctx,
		`SELECT intent_id, title, response FROM intents WHERE intent_id = $1`, id))
}

func (s *PostgresStore) Variations(ctx context.Context) ([]Variation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT variation_id, intent_id, variation FROM intent_variations ORDER BY variation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Variation
	for rows.Next() {
		var v Variation
		if err := rows.Scan(&v.ID, &v.IntentID, &v.Text); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ClearIntents removes variations first, then intents.
func (s *PostgresStore) ClearIntents(ctx context.Context) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM intent_variations`)
	if err != nil {
		return 0, 0, fmt.Errorf("clear variations: %w", err)
	}
	variations, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM intents`)
	if err != nil {
		return 0, 0, fmt.Errorf("clear intents: %w", err)
	}
	intents, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return int(intents), int(variations), nil
}

func (s *PostgresStore) Unanswered(ctx context.Context, fallback string) ([]UnansweredQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.client_name, u.content, u.timestamp
		FROM messages b
		JOIN conversations conv ON conv.conversation_id = b.conversation_id
		JOIN clients c ON c.client_id = conv.client_id
		JOIN LATERAL (
			SELECT content, timestamp FROM messages m
			WHERE m.conversation_id = b.conversation_id AND m.sender = 'user'
			  AND (m.timestamp < b.timestamp OR (m.timestamp = b.timestamp AND m.message_id < b.message_id))
			ORDER BY m.timestamp DESC, m.message_id DESC LIMIT 1
		) u ON TRUE
		WHERE b.sender = 'bot' AND b.content = $1
		ORDER BY b.message_id`, fallback)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnansweredQuestion
	for rows.Next() {
		var q UnansweredQuestion
		if err := rows.Scan(&q.ClientName, &q.Question, &q.AskedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Engagement(ctx context.Context, fallback string) ([]ClientEngagement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.client_name,
		       COUNT(DISTINCT conv.conversation_id),
		       COUNT(m.message_id),
		       COALESCE(SUM(CASE WHEN m.sender = 'bot' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN m.sender = 'bot' AND m.content = $1 THEN 1 ELSE 0 END), 0)
		FROM clients c
		LEFT JOIN conversations conv ON conv.client_id = c.client_id
		LEFT JOIN messages m ON m.conversation_id = conv.conversation_id
		GROUP BY c.client_name
		ORDER BY COUNT(DISTINCT conv.conversation_id) DESC, c.client_name`, fallback)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClientEngagement
	for rows.Next() {
		var e ClientEngagement
		if err := rows.Scan(&e.ClientName, &e.TotalConversations, &e.TotalMessages, &e.BotResponses, &e.FallbackCount); err != nil {
			return nil, err
		}
		e.Assertiveness = assertiveness(e.BotResponses, e.FallbackCount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
