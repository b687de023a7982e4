package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Repository persists chats and messages in Postgres. Participant details
// are stored as a JSONB blob since they are display-only.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateChat writes a chat. Market chat ids are deterministic, so the
// insert is a no-op when the thread already exists.
func (r *Repository) CreateChat(ctx context.Context, c Chat) error {
	details, err := json.Marshal(c.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO chats (id, kind, participant_a, participant_b, details, item_id, item_name, post_id, post_content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.Kind, c.Participants[0], c.Participants[1], details,
		nullable(c.ItemID), nullable(c.ItemName), nullable(c.PostID), nullable(c.PostContent), c.CreatedAt)
	return err
}

const chatCols = `id, kind, participant_a, participant_b, details,
	COALESCE(item_id, ''), COALESCE(item_name, ''), COALESCE(post_id, ''), COALESCE(post_content, ''),
	COALESCE(last_message, ''), last_message_at, created_at`

// GetChat returns a chat, or nil when absent.
func (r *Repository) GetChat(ctx context.Context, id string) (*Chat, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chatCols+` FROM chats WHERE id = $1`, id)
	c, err := scanChat(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ChatsByPost returns the secure chats attached to a post.
func (r *Repository) ChatsByPost(ctx context.Context, postID string) ([]Chat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+chatCols+` FROM chats WHERE post_id = $1`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChats(rows)
}

// AllChats returns every chat; participant filtering happens in the service.
func (r *Repository) AllChats(ctx context.Context) ([]Chat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+chatCols+` FROM chats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChats(rows)
}

// AppendMessage writes one message.
func (r *Repository) AppendMessage(ctx context.Context, m Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.ChatID, m.SenderID, m.Content, m.CreatedAt)
	return err
}

// Messages returns a chat's messages, oldest first.
func (r *Repository) Messages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// TouchChat bumps the chat's denormalized last-message fields.
func (r *Repository) TouchChat(ctx context.Context, chatID, lastMessage string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET last_message = $2, last_message_at = $3 WHERE id = $1
	`, chatID, lastMessage, at)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanChat(scan func(dest ...any) error) (*Chat, error) {
	var c Chat
	var details []byte
	var lastMessageAt sql.NullTime
	err := scan(&c.ID, &c.Kind, &c.Participants[0], &c.Participants[1], &details,
		&c.ItemID, &c.ItemName, &c.PostID, &c.PostContent,
		&c.LastMessage, &lastMessageAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastMessageAt.Valid {
		c.LastMessageAt = lastMessageAt.Time
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &c.Details); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func collectChats(rows *sql.Rows) ([]Chat, error) {
	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows.Scan)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}
