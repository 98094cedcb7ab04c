// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"stageflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Business Domain Events
// =============================================================================

// BusinessCreated is published when a new tenant business is registered.
// The stages module subscribes to seed a default stage.
type BusinessCreated struct {
	BaseEvent
	BusinessID uuid.UUID `json:"businessId"`
	Name       string    `json:"name"`
}

func (e BusinessCreated) EventName() string { return "business.created" }

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// ConversationStageChanged is published when the selection step transitions a
// conversation to a new stage.
type ConversationStageChanged struct {
	BaseEvent
	BusinessID     uuid.UUID `json:"businessId"`
	ConversationID uuid.UUID `json:"conversationId"`
	OldStageID     uuid.UUID `json:"oldStageId"`
	NewStageID     uuid.UUID `json:"newStageId"`
	MatchTier      string    `json:"matchTier"`
}

func (e ConversationStageChanged) EventName() string { return "pipeline.stage.changed" }

// MessageProcessed is published after a message completes the pipeline.
type MessageProcessed struct {
	BaseEvent
	BusinessID     uuid.UUID `json:"businessId"`
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	ProcessLogID   string    `json:"processLogId"`
	AIStopped      bool      `json:"aiStopped"`
}

func (e MessageProcessed) EventName() string { return "pipeline.message.processed" }

// PipelineFailed is published when the mandatory response step fails.
// The notification module subscribes to alert operators.
type PipelineFailed struct {
	BaseEvent
	BusinessID     uuid.UUID `json:"businessId"`
	ConversationID uuid.UUID `json:"conversationId"`
	ProcessLogID   string    `json:"processLogId"`
	Reason         string    `json:"reason"`
}

func (e PipelineFailed) EventName() string { return "pipeline.failed" }
