// Package transport defines request/response DTOs for the stages module.
package transport

import "time"

// CreateStageRequest creates a new stage.
type CreateStageRequest struct {
	Name                 string  `json:"name" validate:"required,min=1,max=120"`
	Description          string  `json:"description" validate:"max=2000"`
	Type                 string  `json:"type" validate:"max=60"`
	IsDefault            bool    `json:"isDefault"`
	SelectionTemplateID  *string `json:"selectionTemplateId" validate:"omitempty,uuid"`
	ExtractionTemplateID *string `json:"extractionTemplateId" validate:"omitempty,uuid"`
	ResponseTemplateID   *string `json:"responseTemplateId" validate:"omitempty,uuid"`
}

// UpdateStageRequest carries optional updates.
type UpdateStageRequest struct {
	Name                 *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description          *string `json:"description" validate:"omitempty,max=2000"`
	Type                 *string `json:"type" validate:"omitempty,max=60"`
	IsDefault            *bool   `json:"isDefault"`
	SelectionTemplateID  *string `json:"selectionTemplateId" validate:"omitempty,uuid"`
	ExtractionTemplateID *string `json:"extractionTemplateId" validate:"omitempty,uuid"`
	ResponseTemplateID   *string `json:"responseTemplateId" validate:"omitempty,uuid"`
}

// StageResponse is the API shape of a stage.
type StageResponse struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	Type                 string    `json:"type"`
	IsDefault            bool      `json:"isDefault"`
	SelectionTemplateID  *string   `json:"selectionTemplateId,omitempty"`
	ExtractionTemplateID *string   `json:"extractionTemplateId,omitempty"`
	ResponseTemplateID   *string   `json:"responseTemplateId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
