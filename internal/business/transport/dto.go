// Package transport defines request/response DTOs for the business module.
package transport

import "time"

// CreateBusinessRequest registers a new tenant.
type CreateBusinessRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=120"`
	Email string `json:"email" validate:"omitempty,email"`
}

// BusinessResponse is the API shape of a business. The key hash never leaves
// the server.
type BusinessResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreatedBusinessResponse includes the one-time plaintext API key.
type CreatedBusinessResponse struct {
	BusinessResponse
	APIKey string `json:"apiKey"`
}

// RotatedKeyResponse carries a freshly rotated API key.
type RotatedKeyResponse struct {
	APIKey string `json:"apiKey"`
}
