// Package transport defines request/response DTOs for the templates module.
package transport

import "time"

// CreateTemplateRequest creates a new template.
type CreateTemplateRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=120"`
	Text         string  `json:"text" validate:"required"`
	SystemPrompt *string `json:"systemPrompt"`
}

// UpdateTemplateRequest carries optional updates.
type UpdateTemplateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	Text         *string `json:"text"`
	SystemPrompt *string `json:"systemPrompt"`
}

// PreviewTemplateRequest renders a template against an ad-hoc context.
type PreviewTemplateRequest struct {
	Context map[string]string `json:"context"`
}

// TemplateResponse is the API shape of a template. Variables is derived from
// the template text on every read.
type TemplateResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Text         string    `json:"text"`
	SystemPrompt *string   `json:"systemPrompt,omitempty"`
	Variables    []string  `json:"variables"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PreviewTemplateResponse is the rendered preview.
type PreviewTemplateResponse struct {
	Text         string            `json:"text"`
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	Values       map[string]string `json:"values"`
}
