// Package repository provides stage persistence backed by PostgreSQL.
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

const stageNotFoundMessage = "stage not found"

const stageColumns = `id, business_id, name, description, type, is_default,
	selection_template_id, extraction_template_id, response_template_id,
	created_at, updated_at`

// Repo implements the stage repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new stage repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func scanStage(row pgx.Row) (Stage, error) {
	var st Stage
	err := row.Scan(
		&st.ID, &st.BusinessID, &st.Name, &st.Description, &st.Type, &st.IsDefault,
		&st.SelectionTemplateID, &st.ExtractionTemplateID, &st.ResponseTemplateID,
		&st.CreatedAt, &st.UpdatedAt,
	)
	return st, err
}

// Create inserts a stage.
func (r *Repo) Create(ctx context.Context, params CreateStageParams) (Stage, error) {
	query := `
		INSERT INTO stages (business_id, name, description, type, is_default,
			selection_template_id, extraction_template_id, response_template_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + stageColumns

	st, err := scanStage(r.pool.QueryRow(ctx, query,
		params.BusinessID, params.Name, params.Description, params.Type, params.IsDefault,
		params.SelectionTemplateID, params.ExtractionTemplateID, params.ResponseTemplateID,
	))
	if err != nil {
		return Stage{}, fmt.Errorf("create stage: %w", err)
	}
	return st, nil
}

// Update applies partial updates to a stage.
func (r *Repo) Update(ctx context.Context, params UpdateStageParams) (Stage, error) {
	query := `
		UPDATE stages
		SET name = COALESCE($3, name),
			description = COALESCE($4, description),
			type = COALESCE($5, type),
			is_default = COALESCE($6, is_default),
			selection_template_id = COALESCE($7, selection_template_id),
			extraction_template_id = COALESCE($8, extraction_template_id),
			response_template_id = COALESCE($9, response_template_id),
			updated_at = now()
		WHERE id = $1 AND business_id = $2
		RETURNING ` + stageColumns

	st, err := scanStage(r.pool.QueryRow(ctx, query,
		params.ID, params.BusinessID, params.Name, params.Description, params.Type, params.IsDefault,
		params.SelectionTemplateID, params.ExtractionTemplateID, params.ResponseTemplateID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, apperr.NotFound(stageNotFoundMessage)
		}
		return Stage{}, fmt.Errorf("update stage: %w", err)
	}
	return st, nil
}

// Delete removes a stage.
func (r *Repo) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM stages WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		return fmt.Errorf("delete stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(stageNotFoundMessage)
	}
	return nil
}

// GetByID retrieves a stage by ID.
func (r *Repo) GetByID(ctx context.Context, businessID, id uuid.UUID) (Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM stages WHERE id = $1 AND business_id = $2`

	st, err := scanStage(r.pool.QueryRow(ctx, query, id, businessID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, apperr.NotFound(stageNotFoundMessage)
		}
		return Stage{}, fmt.Errorf("get stage by id: %w", err)
	}
	return st, nil
}

// List returns all stages for a business in the requested order.
func (r *Repo) List(ctx context.Context, businessID uuid.UUID, order ListOrder) ([]Stage, error) {
	orderBy := "created_at"
	if order == OrderByName {
		orderBy = "name"
	}
	query := `SELECT ` + stageColumns + ` FROM stages WHERE business_id = $1 ORDER BY ` + orderBy

	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// GetDefault returns the default stage for a business. A stage flagged
// is_default wins; otherwise the earliest-created stage is the default.
func (r *Repo) GetDefault(ctx context.Context, businessID uuid.UUID) (Stage, error) {
	query := `
		SELECT ` + stageColumns + `
		FROM stages
		WHERE business_id = $1
		ORDER BY is_default DESC, created_at ASC
		LIMIT 1`

	st, err := scanStage(r.pool.QueryRow(ctx, query, businessID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stage{}, apperr.NotFound(stageNotFoundMessage)
		}
		return Stage{}, fmt.Errorf("get default stage: %w", err)
	}
	return st, nil
}

// ClearDefault unsets the default flag on every stage of the business.
func (r *Repo) ClearDefault(ctx context.Context, businessID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE stages SET is_default = false, updated_at = now() WHERE business_id = $1 AND is_default`,
		businessID)
	if err != nil {
		return fmt.Errorf("clear default stage: %w", err)
	}
	return nil
}
