// Package repository provides conversation and message persistence backed by
// PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stageflow_backend/platform/apperr"
)

const conversationNotFoundMessage = "conversation not found"

// ConversationRepo implements ConversationRepository.
type ConversationRepo struct {
	pool *pgxpool.Pool
}

// NewConversations creates a new conversation repository.
func NewConversations(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

var _ ConversationRepository = (*ConversationRepo)(nil)

// ResolveOrCreate returns the existing conversation for a (business, user)
// pair or inserts a fresh one. The unique index on (business_id, user_id)
// makes concurrent first messages converge on one row.
func (r *ConversationRepo) ResolveOrCreate(ctx context.Context, businessID uuid.UUID, userID string) (Conversation, error) {
	query := `
		INSERT INTO conversations (business_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (business_id, user_id) DO UPDATE SET last_updated = now()
		RETURNING id, business_id, user_id, current_stage_id, created_at, last_updated`

	var conv Conversation
	if err := r.pool.QueryRow(ctx, query, businessID, userID).Scan(
		&conv.ID, &conv.BusinessID, &conv.UserID, &conv.CurrentStageID, &conv.CreatedAt, &conv.LastUpdated,
	); err != nil {
		return Conversation{}, fmt.Errorf("resolve conversation: %w", err)
	}
	return conv, nil
}

// GetByID retrieves a conversation by ID.
func (r *ConversationRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (Conversation, error) {
	query := `
		SELECT id, business_id, user_id, current_stage_id, created_at, last_updated
		FROM conversations
		WHERE id = $1 AND business_id = $2`

	var conv Conversation
	if err := r.pool.QueryRow(ctx, query, id, businessID).Scan(
		&conv.ID, &conv.BusinessID, &conv.UserID, &conv.CurrentStageID, &conv.CreatedAt, &conv.LastUpdated,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, apperr.NotFound(conversationNotFoundMessage)
		}
		return Conversation{}, fmt.Errorf("get conversation by id: %w", err)
	}
	return conv, nil
}

// List returns a business's conversations, most recently active first.
func (r *ConversationRepo) List(ctx context.Context, businessID uuid.UUID, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, business_id, user_id, current_stage_id, created_at, last_updated
		FROM conversations
		WHERE business_id = $1
		ORDER BY last_updated DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.BusinessID, &conv.UserID, &conv.CurrentStageID, &conv.CreatedAt, &conv.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// GetCurrentStageID reads the stored stage reference, nil when unset.
func (r *ConversationRepo) GetCurrentStageID(ctx context.Context, businessID, conversationID uuid.UUID) (*uuid.UUID, error) {
	var stageID *uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT current_stage_id FROM conversations WHERE id = $1 AND business_id = $2`,
		conversationID, businessID,
	).Scan(&stageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(conversationNotFoundMessage)
		}
		return nil, fmt.Errorf("get current stage: %w", err)
	}
	return stageID, nil
}

// SetCurrentStage persists a stage assignment or transition.
func (r *ConversationRepo) SetCurrentStage(ctx context.Context, businessID, conversationID, stageID uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE conversations SET current_stage_id = $3, last_updated = now() WHERE id = $1 AND business_id = $2`,
		conversationID, businessID, stageID)
	if err != nil {
		return fmt.Errorf("set current stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(conversationNotFoundMessage)
	}
	return nil
}

// Touch bumps last_updated.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE conversations SET last_updated = now() WHERE id = $1`, conversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
