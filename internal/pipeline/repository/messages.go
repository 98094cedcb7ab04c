package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepo implements MessageRepository.
type MessageRepo struct {
	pool *pgxpool.Pool
}

// NewMessages creates a new message repository.
func NewMessages(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

var _ MessageRepository = (*MessageRepo)(nil)

// Append stores one message.
func (r *MessageRepo) Append(ctx context.Context, conversationID uuid.UUID, role, content string) (Message, error) {
	query := `
		INSERT INTO messages (conversation_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, conversation_id, role, content, created_at`

	var msg Message
	if err := r.pool.QueryRow(ctx, query, conversationID, role, content).Scan(
		&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt,
	); err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// reverse flips a tail query back to oldest-first.
func reverse(messages []Message) []Message {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages
}

// ListByConversation returns the limit most recent messages of one
// conversation, oldest-first.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	return reverse(messages), nil
}

// ListByUser returns the limit most recent messages a user exchanged with a
// business across all conversations, oldest-first.
func (r *MessageRepo) ListByUser(ctx context.Context, businessID uuid.UUID, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT m.id, m.conversation_id, m.role, m.content, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.business_id = $1 AND c.user_id = $2
		ORDER BY m.created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, businessID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user messages: %w", err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	return reverse(messages), nil
}
