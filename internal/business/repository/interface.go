package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Business is a tenant. APIKeyHash is a bcrypt hash of the secret part of the
// tenant's API key; the plaintext is shown once at creation or rotation.
type Business struct {
	ID         uuid.UUID
	Name       string
	Email      string
	APIKeyHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateBusinessParams describes a new tenant.
type CreateBusinessParams struct {
	Name       string
	Email      string
	APIKeyHash string
}

// Repository is the business persistence contract.
type Repository interface {
	Create(ctx context.Context, params CreateBusinessParams) (Business, error)
	GetByID(ctx context.Context, id uuid.UUID) (Business, error)
	List(ctx context.Context) ([]Business, error)
	UpdateAPIKeyHash(ctx context.Context, id uuid.UUID, hash string) error
}
