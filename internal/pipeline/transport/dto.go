// Package transport defines request/response DTOs for the pipeline module.
package transport

import "time"

// ProcessMessageRequest is one inbound message.
type ProcessMessageRequest struct {
	UserID         string  `json:"userId" validate:"required,min=1,max=200"`
	Content        string  `json:"content" validate:"required"`
	ConversationID *string `json:"conversationId" validate:"omitempty,uuid"`
	SenderRole     string  `json:"senderRole" validate:"omitempty,oneof=user operator"`
}

// StopRequest toggles an AI-stop flag.
type StopRequest struct {
	Stopped *bool `json:"stopped" validate:"required"`
}

// ConversationResponse is the API shape of a conversation.
type ConversationResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CurrentStageID *string   `json:"currentStageId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// MessageResponse is the API shape of a stored message.
type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
