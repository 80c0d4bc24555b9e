package chat

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"classportal/internal/store"
)

// Chat is a one-to-one conversation. Participants are stored as an ordered
// pair so both orders name the same chat.
type Chat struct {
	ID           string    `json:"id" db:"id"`
	ParticipantA string    `json:"-" db:"participant_a"`
	ParticipantB string    `json:"-" db:"participant_b"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Participants returns both user ids.
func (c Chat) Participants() [2]string { return [2]string{c.ParticipantA, c.ParticipantB} }

// Has reports whether userID takes part in c.
func (c Chat) Has(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// Other returns the participant that is not userID.
func (c Chat) Other(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Message is one entry of a conversation.
type Message struct {
	ID        string    `json:"id" db:"id"`
	ChatID    string    `json:"chatId" db:"chat_id"`
	SenderID  string    `json:"sender" db:"sender_id"`
	Type      string    `json:"type" db:"type"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func pair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

const (
	chatColumns    = `id, participant_a, participant_b, created_at`
	messageColumns = `id, chat_id, sender_id, type, content, created_at`
)

// Repository persists chats and messages.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores c with its participants ordered. A second chat for the same
// pair fails with a unique violation.
func (r *Repository) Insert(ctx context.Context, c Chat) error {
	c.ParticipantA, c.ParticipantB = pair(c.ParticipantA, c.ParticipantB)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO chats (id, participant_a, participant_b, created_at)
		VALUES (:id, :participant_a, :participant_b, :created_at)
	`, c)
	return errors.Wrap(err, "insert chat")
}

func (r *Repository) getChat(ctx context.Context, query string, args ...any) (*Chat, error) {
	var c Chat
	err := r.db.GetContext(ctx, &c, r.db.Rebind(query), args...)
	if store.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get chat")
	}
	return &c, nil
}

// Get returns the chat with id, nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Chat, error) {
	return r.getChat(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, id)
}

// FindPair returns the chat between a and b in either order, nil when absent.
func (r *Repository) FindPair(ctx context.Context, a, b string) (*Chat, error) {
	a, b = pair(a, b)
	return r.getChat(ctx, `SELECT `+chatColumns+` FROM chats WHERE participant_a = ? AND participant_b = ?`, a, b)
}

// ForUser returns every chat userID takes part in, newest first.
func (r *Repository) ForUser(ctx context.Context, userID string) ([]Chat, error) {
	out := []Chat{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+chatColumns+` FROM chats
		WHERE participant_a = ? OR participant_b = ?
		ORDER BY created_at DESC`), userID, userID)
	return out, errors.Wrap(err, "list chats")
}

// Partners maps each user userID has a chat with to that chat id.
func (r *Repository) Partners(ctx context.Context, userID string) (map[string]string, error) {
	chats, err := r.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(chats))
	for _, c := range chats {
		out[c.Other(userID)] = c.ID
	}
	return out, nil
}

// InsertMessage appends m to its chat.
func (r *Repository) InsertMessage(ctx context.Context, m Message) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, type, content, created_at)
		VALUES (:id, :chat_id, :sender_id, :type, :content, :created_at)
	`, m)
	return errors.Wrap(err, "insert message")
}

// Messages returns the messages of chatID in arrival order.
func (r *Repository) Messages(ctx context.Context, chatID string) ([]Message, error) {
	out := []Message{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = ? ORDER BY created_at ASC, id ASC`), chatID)
	return out, errors.Wrap(err, "list messages")
}

// LastMessage returns the newest message of chatID, nil for an empty chat.
func (r *Repository) LastMessage(ctx context.Context, chatID string) (*Message, error) {
	var m Message
	err := r.db.GetContext(ctx, &m, r.db.Rebind(`
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`), chatID)
	if store.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "last message")
	}
	return &m, nil
}
