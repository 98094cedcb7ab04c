package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Conversation ties a business and an external user id to a running message
// thread and its current stage. CurrentStageID is nil until the pipeline
// assigns one.
type Conversation struct {
	ID             uuid.UUID
	BusinessID     uuid.UUID
	UserID         string
	CurrentStageID *uuid.UUID
	CreatedAt      time.Time
	LastUpdated    time.Time
}

// Message roles as stored.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable entry in a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	CreatedAt      time.Time
}

// ConversationRepository is the conversation persistence contract.
type ConversationRepository interface {
	// ResolveOrCreate returns the conversation for a (business, user) pair,
	// creating it on first contact.
	ResolveOrCreate(ctx context.Context, businessID uuid.UUID, userID string) (Conversation, error)
	GetByID(ctx context.Context, businessID, id uuid.UUID) (Conversation, error)
	List(ctx context.Context, businessID uuid.UUID, limit int) ([]Conversation, error)
	GetCurrentStageID(ctx context.Context, businessID, conversationID uuid.UUID) (*uuid.UUID, error)
	SetCurrentStage(ctx context.Context, businessID, conversationID, stageID uuid.UUID) error
	Touch(ctx context.Context, conversationID uuid.UUID) error
}

// MessageRepository is the message persistence contract. Messages are append
// only.
type MessageRepository interface {
	Append(ctx context.Context, conversationID uuid.UUID, role, content string) (Message, error)
	// ListByConversation returns up to limit most recent messages, reordered
	// oldest-first.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
	// ListByUser spans all of a user's conversations with the business,
	// oldest-first.
	ListByUser(ctx context.Context, businessID uuid.UUID, userID string, limit int) ([]Message, error)
}
