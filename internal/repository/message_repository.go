package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const messageColumns = `id, sender_id, recipient_id, sender_name, content, is_read, created_at`

// MessageRepository persists direct messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs a MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO messages (id, sender_id, recipient_id, sender_name, content, is_read, created_at)
		VALUES (:id, :sender_id, :recipient_id, :sender_name, :content, FALSE, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// Thread returns the messages exchanged between two users, oldest first.
func (r *MessageRepository) Thread(ctx context.Context, userID, otherID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT %s FROM (
			SELECT %s FROM messages
			WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
			ORDER BY created_at DESC LIMIT %d
		) recent ORDER BY created_at ASC`, messageColumns, messageColumns, limit)
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, userID, otherID); err != nil {
		return nil, fmt.Errorf("list message thread: %w", err)
	}
	return messages, nil
}

// MarkThreadRead marks every message from otherID to userID as read.
func (r *MessageRepository) MarkThreadRead(ctx context.Context, userID, otherID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE recipient_id = $1 AND sender_id = $2 AND is_read = FALSE`, userID, otherID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return res.RowsAffected()
}

// Conversations lists the user's counter-parties with the latest message and unread count.
func (r *MessageRepository) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	const query = `WITH peers AS (
			SELECT CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS peer_id, content, created_at,
				(recipient_id = $1 AND is_read = FALSE) AS unread
			FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
		), ranked AS (
			SELECT peer_id, content, created_at,
				ROW_NUMBER() OVER (PARTITION BY peer_id ORDER BY created_at DESC) AS rn,
				COUNT(*) FILTER (WHERE unread) OVER (PARTITION BY peer_id) AS unread
			FROM peers
		)
		SELECT r.peer_id AS user_id, COALESCE(p.full_name, '') AS full_name, r.content AS last_message,
			r.created_at AS last_message_at, r.unread
		FROM ranked r
		LEFT JOIN profiles p ON p.user_id = r.peer_id
		WHERE r.rn = 1
		ORDER BY r.created_at DESC`
	var conversations []models.Conversation
	if err := r.db.SelectContext(ctx, &conversations, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}
