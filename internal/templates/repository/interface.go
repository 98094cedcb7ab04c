package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Template is a stored prompt template. The variable set is derived from the
// text on demand, never stored.
type Template struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	Name         string
	Text         string
	SystemPrompt *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateTemplateParams describes a new template.
type CreateTemplateParams struct {
	BusinessID   uuid.UUID
	Name         string
	Text         string
	SystemPrompt *string
}

// UpdateTemplateParams carries optional field updates.
type UpdateTemplateParams struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	Name         *string
	Text         *string
	SystemPrompt *string
}

// Repository is the template persistence contract.
type Repository interface {
	Create(ctx context.Context, params CreateTemplateParams) (Template, error)
	Update(ctx context.Context, params UpdateTemplateParams) (Template, error)
	Delete(ctx context.Context, businessID, id uuid.UUID) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (Template, error)
	List(ctx context.Context, businessID uuid.UUID) ([]Template, error)
}
