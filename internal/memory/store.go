package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/chatloom/chatloom/internal/structured"
)

// ErrSessionNotFound is returned when a session does not exist for the user.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	role         TEXT NOT NULL,
	content      TEXT NOT NULL,
	content_type TEXT NOT NULL,
	components   TEXT,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
`

// Store persists conversations in a SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the conversation database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	// The sqlite driver serialises writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent requests.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply conversation schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type sessionRow struct {
	SessionID    string `db:"session_id"`
	UserID       string `db:"user_id"`
	Title        string `db:"title"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
	MessageCount int    `db:"message_count"`
}

type messageRow struct {
	ID          int64          `db:"id"`
	SessionID   string         `db:"session_id"`
	Role        string         `db:"role"`
	Content     string         `db:"content"`
	ContentType string         `db:"content_type"`
	Components  sql.NullString `db:"components"`
	CreatedAt   int64          `db:"created_at"`
}

func (r sessionRow) toConversation() Conversation {
	return Conversation{
		SessionID:    r.SessionID,
		UserID:       r.UserID,
		Title:        r.Title,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:    time.Unix(0, r.UpdatedAt).UTC(),
		MessageCount: r.MessageCount,
	}
}

func (r messageRow) toMessage() (Message, error) {
	msg := Message{
		ID:          r.ID,
		SessionID:   r.SessionID,
		Role:        r.Role,
		Content:     r.Content,
		ContentType: r.ContentType,
		Timestamp:   time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.Components.Valid && r.Components.String != "" {
		if err := json.Unmarshal([]byte(r.Components.String), &msg.Components); err != nil {
			return Message{}, fmt.Errorf("decode message components: %w", err)
		}
	}
	return msg, nil
}

// SaveInteraction appends a question/answer pair to the session, creating the
// session on first use, and returns the updated session metadata.
func (s *Store) SaveInteraction(ctx context.Context, userID, sessionID string, question string, answer Message) (Conversation, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Conversation{}, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, title, created_at, updated_at, message_count)
		VALUES (?, ?, '', ?, ?, 0)
		ON CONFLICT(session_id) DO NOTHING`,
		sessionID, userID, now.UnixNano(), now.UnixNano())
	if err != nil {
		return Conversation{}, fmt.Errorf("ensure session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, content_type, created_at)
		VALUES (?, 'user', ?, 'text', ?)`,
		sessionID, question, now.UnixNano())
	if err != nil {
		return Conversation{}, fmt.Errorf("store question: %w", err)
	}

	components, err := encodeComponents(answer.Components)
	if err != nil {
		return Conversation{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, content_type, components, created_at)
		VALUES (?, 'assistant', ?, ?, ?, ?)`,
		sessionID, answer.Content, answer.ContentType, components, now.UnixNano())
	if err != nil {
		return Conversation{}, fmt.Errorf("store answer: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET message_count = message_count + 2, updated_at = ?
		WHERE session_id = ?`,
		now.UnixNano(), sessionID)
	if err != nil {
		return Conversation{}, fmt.Errorf("update session metadata: %w", err)
	}

	var row sessionRow
	if err := tx.GetContext(ctx, &row, `SELECT * FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return Conversation{}, fmt.Errorf("reload session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Conversation{}, fmt.Errorf("commit save: %w", err)
	}
	return row.toConversation(), nil
}

func encodeComponents(components []structured.Component) (sql.NullString, error) {
	if len(components) == 0 {
		return sql.NullString{}, nil
	}
	encoded, err := json.Marshal(components)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode message components: %w", err)
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

// SetTitle assigns a title to a session that does not have one yet.
func (s *Store) SetTitle(ctx context.Context, userID, sessionID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET title = ? WHERE session_id = ? AND user_id = ? AND title = ''`,
		title, sessionID, userID)
	if err != nil {
		return fmt.Errorf("set session title: %w", err)
	}
	return nil
}

// ListSessions returns session metadata for a user, most recent first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]Conversation, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	conversations := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		conversations = append(conversations, row.toConversation())
	}
	return conversations, nil
}

// GetSession returns one session with its full message history.
func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*Conversation, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM sessions WHERE session_id = ? AND user_id = ?`, sessionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	conversation := row.toConversation()
	messages, err := s.sessionMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	conversation.Messages = messages
	return &conversation, nil
}

func (s *Store) sessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session messages: %w", err)
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.toMessage()
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteSession removes one session and its messages.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE session_id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	return nil
}

// DeleteAllSessions removes every session owned by a user.
func (s *Store) DeleteAllSessions(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE session_id IN (SELECT session_id FROM sessions WHERE user_id = ?)`, userID)
	if err != nil {
		return fmt.Errorf("delete user messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteEverything removes all sessions across all users.
func (s *Store) DeleteEverything(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// ListAllSessions returns every session with messages loaded, for analytics.
func (s *Store) ListAllSessions(ctx context.Context) ([]Conversation, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM sessions ORDER BY user_id, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all sessions: %w", err)
	}

	conversations := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		conversation := row.toConversation()
		messages, err := s.sessionMessages(ctx, row.SessionID)
		if err != nil {
			return nil, err
		}
		conversation.Messages = messages
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}
