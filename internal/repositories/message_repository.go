package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, conversation_id, sender_id, receiver_id, text, message_type, is_read, created_at`

// MessageRepository owns durable message rows, append-only per conversation.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID, receiverID int, text, messageType string) (models.Message, error)
	ListPage(ctx context.Context, conversationID, page, pageSize int) ([]models.Message, bool, error)
	Latest(ctx context.Context, conversationID int) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	MarkAllRead(ctx context.Context, conversationID, userID int) error
	CountUnread(ctx context.Context, conversationID, userID int) (int, error)
	SoftDelete(ctx context.Context, messageID, senderID int) (models.Message, error)
}

// MessageRepo is the sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create appends a message with is_read = false. Commit order is the source
// of truth for both storage and broadcast order.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID, receiverID int, text, messageType string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`INSERT INTO messages (conversation_id, sender_id, receiver_id, text, message_type)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+messageColumns,
		conversationID, senderID, receiverID, text, messageType)
	return msg, err
}

// ListPage returns one page of messages. Pages count back from the newest
// message (page 1 = latest); the returned slice is chronological for
// display, with hasMore reporting whether older messages remain.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID, page, pageSize int) ([]models.Message, bool, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE conversation_id = $1
         ORDER BY created_at DESC, id DESC
         LIMIT $2 OFFSET $3`,
		conversationID, pageSize+1, offset)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(msgs) > pageSize
	if hasMore {
		msgs = msgs[:pageSize]
	}
	// Newest-first internally, oldest-first out.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, hasMore, nil
}

// Latest returns the newest message of a conversation.
func (r *MessageRepo) Latest(ctx context.Context, conversationID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages
         WHERE conversation_id = $1
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Get fetches one message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkAllRead flips is_read on every message the user did not send. The
// read flag only ever transitions false to true, so repeating the call has
// no further effect.
func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE
         WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, userID)
	return err
}

// CountUnread counts messages in the conversation where sender != user and
// is_read = false. Always computed from current flags, never cached.
func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages
         WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, userID)
	return count, err
}

// SoftDelete replaces the body with the deleted sentinel and tags the kind.
// The sender_id predicate is a second line of defense; the service verifies
// ownership before calling.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, senderID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`UPDATE messages SET text = $1, message_type = $2
         WHERE id = $3 AND sender_id = $4
         RETURNING `+messageColumns,
		models.DeletedBody, models.MessageTypeDeleted, messageID, senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
