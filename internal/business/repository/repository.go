// Package repository provides business (tenant) persistence backed by PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stageflow_backend/platform/apperr"
)

const businessNotFoundMessage = "business not found"

// Repo implements the business repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new business repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// Create inserts a business.
func (r *Repo) Create(ctx context.Context, params CreateBusinessParams) (Business, error) {
	query := `
		INSERT INTO businesses (name, email, api_key_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, api_key_hash, created_at, updated_at`

	var b Business
	if err := r.pool.QueryRow(ctx, query, params.Name, params.Email, params.APIKeyHash).Scan(
		&b.ID, &b.Name, &b.Email, &b.APIKeyHash, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return Business{}, fmt.Errorf("create business: %w", err)
	}
	return b, nil
}

// GetByID retrieves a business by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Business, error) {
	query := `
		SELECT id, name, email, api_key_hash, created_at, updated_at
		FROM businesses
		WHERE id = $1`

	var b Business
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Email, &b.APIKeyHash, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, apperr.NotFound(businessNotFoundMessage)
		}
		return Business{}, fmt.Errorf("get business by id: %w", err)
	}
	return b, nil
}

// List returns all businesses ordered by name.
func (r *Repo) List(ctx context.Context) ([]Business, error) {
	query := `
		SELECT id, name, email, api_key_hash, created_at, updated_at
		FROM businesses
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var businesses []Business
	for rows.Next() {
		var b Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Email, &b.APIKeyHash, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

// UpdateAPIKeyHash replaces the stored API key hash.
func (r *Repo) UpdateAPIKeyHash(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE businesses SET api_key_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update api key hash: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(businessNotFoundMessage)
	}
	return nil
}
