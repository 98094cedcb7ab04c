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

const templateNotFoundMessage = "template not found"

// Repo implements the template repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new template repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create inserts a template.
func (r *Repo) Create(ctx context.Context, params CreateTemplateParams) (Template, error) {
	query := `
		INSERT INTO templates (business_id, name, text, system_prompt)
		VALUES ($1, $2, $3, $4)
		RETURNING id, business_id, name, text, system_prompt, created_at, updated_at`

	var tmpl Template
	if err := r.pool.QueryRow(ctx, query, params.BusinessID, params.Name, params.Text, params.SystemPrompt).Scan(
		&tmpl.ID, &tmpl.BusinessID, &tmpl.Name, &tmpl.Text, &tmpl.SystemPrompt, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	); err != nil {
		return Template{}, fmt.Errorf("create template: %w", err)
	}
	return tmpl, nil
}

// Update applies partial updates to a template.
func (r *Repo) Update(ctx context.Context, params UpdateTemplateParams) (Template, error) {
	query := `
		UPDATE templates
		SET name = COALESCE($3, name),
			text = COALESCE($4, text),
			system_prompt = COALESCE($5, system_prompt),
			updated_at = now()
		WHERE id = $1 AND business_id = $2
		RETURNING id, business_id, name, text, system_prompt, created_at, updated_at`

	var tmpl Template
	if err := r.pool.QueryRow(ctx, query,
		params.ID, params.BusinessID, params.Name, params.Text, params.SystemPrompt,
	).Scan(&tmpl.ID, &tmpl.BusinessID, &tmpl.Name, &tmpl.Text, &tmpl.SystemPrompt, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, apperr.NotFound(templateNotFoundMessage)
		}
		return Template{}, fmt.Errorf("update template: %w", err)
	}
	return tmpl, nil
}

// Delete removes a template.
func (r *Repo) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(templateNotFoundMessage)
	}
	return nil
}

// GetByID retrieves a template by ID.
func (r *Repo) GetByID(ctx context.Context, businessID, id uuid.UUID) (Template, error) {
	query := `
		SELECT id, business_id, name, text, system_prompt, created_at, updated_at
		FROM templates
		WHERE id = $1 AND business_id = $2`

	var tmpl Template
	if err := r.pool.QueryRow(ctx, query, id, businessID).Scan(
		&tmpl.ID, &tmpl.BusinessID, &tmpl.Name, &tmpl.Text, &tmpl.SystemPrompt, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, apperr.NotFound(templateNotFoundMessage)
		}
		return Template{}, fmt.Errorf("get template by id: %w", err)
	}
	return tmpl, nil
}

// List returns all templates for a business ordered by name.
func (r *Repo) List(ctx context.Context, businessID uuid.UUID) ([]Template, error) {
	query := `
		SELECT id, business_id, name, text, system_prompt, created_at, updated_at
		FROM templates
		WHERE business_id = $1
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var tmpl Template
		if err := rows.Scan(&tmpl.ID, &tmpl.BusinessID, &tmpl.Name, &tmpl.Text, &tmpl.SystemPrompt, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}
