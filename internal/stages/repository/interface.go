package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Stage is a named phase of a conversation. Each template reference is
// nullable; a stage with no selection template simply skips that step.
type Stage struct {
	ID                   uuid.UUID
	BusinessID           uuid.UUID
	Name                 string
	Description          string
	Type                 string
	IsDefault            bool
	SelectionTemplateID  *uuid.UUID
	ExtractionTemplateID *uuid.UUID
	ResponseTemplateID   *uuid.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CreateStageParams describes a new stage.
type CreateStageParams struct {
	BusinessID           uuid.UUID
	Name                 string
	Description          string
	Type                 string
	IsDefault            bool
	SelectionTemplateID  *uuid.UUID
	ExtractionTemplateID *uuid.UUID
	ResponseTemplateID   *uuid.UUID
}

// UpdateStageParams carries optional field updates.
type UpdateStageParams struct {
	ID                   uuid.UUID
	BusinessID           uuid.UUID
	Name                 *string
	Description          *string
	Type                 *string
	IsDefault            *bool
	SelectionTemplateID  *uuid.UUID
	ExtractionTemplateID *uuid.UUID
	ResponseTemplateID   *uuid.UUID
}

// ListOrder selects the ordering of List results.
type ListOrder string

const (
	OrderByName    ListOrder = "name"
	OrderByCreated ListOrder = "created"
)

// Repository is the stage persistence contract.
type Repository interface {
	Create(ctx context.Context, params CreateStageParams) (Stage, error)
	Update(ctx context.Context, params UpdateStageParams) (Stage, error)
	Delete(ctx context.Context, businessID, id uuid.UUID) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (Stage, error)
	List(ctx context.Context, businessID uuid.UUID, order ListOrder) ([]Stage, error)
	// GetDefault returns the stage flagged default for the business, or the
	// earliest-created stage when none is flagged.
	GetDefault(ctx context.Context, businessID uuid.UUID) (Stage, error)
	// ClearDefault removes the default flag from every stage of the business.
	ClearDefault(ctx context.Context, businessID uuid.UUID) error
}
