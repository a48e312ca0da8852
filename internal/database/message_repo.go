package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tripunite/gateway/internal/domain"
)

// MessageRepository stores chat messages relayed by the gateway
type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateMessage inserts a message record
func (r *MessageRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO messages (id, content, sender_id, chat_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), msg.Content, msg.SenderID, msg.ChatID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
