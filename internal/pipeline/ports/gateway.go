// Package ports declares the external collaborator contracts of the pipeline.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// CallType labels the purpose of a generation call for logging and routing.
type CallType string

const (
	CallIntent     CallType = "intent"
	CallExtraction CallType = "extraction"
	CallResponse   CallType = "response"
)

// Call is one generation request. The business and conversation ids carry
// no prompt content; they let gateway logs be correlated to a tenant.
type Call struct {
	Type           CallType
	BusinessID     uuid.UUID
	ConversationID uuid.UUID
	SystemPrompt   string
	Prompt         string
}

// Generator produces text from a rendered prompt. Implementations wrap an
// external language-model service and must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, call Call) (string, error)
}
