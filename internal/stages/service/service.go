// Package service implements the stage catalog: stage CRUD plus the
// resolve-stage-for-conversation algorithm used by the message pipeline.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"stageflow_backend/internal/stages/repository"
	"stageflow_backend/internal/variables"
	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/logger"
)

const msgNoStagesConfigured = "no stages configured for business"

// ConversationStageStore reads and writes the current stage of a
// conversation. Implemented by the pipeline's conversation repository.
type ConversationStageStore interface {
	GetCurrentStageID(ctx context.Context, businessID, conversationID uuid.UUID) (*uuid.UUID, error)
	SetCurrentStage(ctx context.Context, businessID, conversationID, stageID uuid.UUID) error
}

// TemplateRefs is the resolved stage of a conversation together with its
// three template references. Any reference may be nil.
type TemplateRefs struct {
	StageID              uuid.UUID
	StageName            string
	SelectionTemplateID  *uuid.UUID
	ExtractionTemplateID *uuid.UUID
	ResponseTemplateID   *uuid.UUID
}

// Service is the stage catalog service.
type Service struct {
	repo          repository.Repository
	conversations ConversationStageStore
	log           *logger.Logger
}

// New creates the stage catalog service.
func New(repo repository.Repository, conversations ConversationStageStore, log *logger.Logger) *Service {
	return &Service{repo: repo, conversations: conversations, log: log}
}

// Repository exposes the underlying store for the handler layer.
func (s *Service) Repository() repository.Repository {
	return s.repo
}

// CreateStage inserts a stage. A stage created with the default flag takes it
// over from whichever stage held it, so at most one stage per business is
// flagged.
func (s *Service) CreateStage(ctx context.Context, params repository.CreateStageParams) (repository.Stage, error) {
	if params.IsDefault {
		if err := s.repo.ClearDefault(ctx, params.BusinessID); err != nil {
			return repository.Stage{}, err
		}
	}
	return s.repo.Create(ctx, params)
}

// UpdateStage applies partial updates, moving the default flag when set.
func (s *Service) UpdateStage(ctx context.Context, params repository.UpdateStageParams) (repository.Stage, error) {
	if params.IsDefault != nil && *params.IsDefault {
		if err := s.repo.ClearDefault(ctx, params.BusinessID); err != nil {
			return repository.Stage{}, err
		}
	}
	return s.repo.Update(ctx, params)
}

func refsOf(st repository.Stage) TemplateRefs {
	return TemplateRefs{
		StageID:              st.ID,
		StageName:            st.Name,
		SelectionTemplateID:  st.SelectionTemplateID,
		ExtractionTemplateID: st.ExtractionTemplateID,
		ResponseTemplateID:   st.ResponseTemplateID,
	}
}

// StageForConversation resolves the stage a conversation is in. A
// conversation without a stage is assigned the business default (or the
// earliest-created stage) and that assignment is persisted best-effort: a
// write failure is logged but does not abort message processing. A business
// with no stages at all fails with a conflict.
func (s *Service) StageForConversation(ctx context.Context, businessID, conversationID uuid.UUID) (TemplateRefs, error) {
	currentID, err := s.conversations.GetCurrentStageID(ctx, businessID, conversationID)
	if err != nil {
		return TemplateRefs{}, err
	}

	if currentID != nil {
		st, err := s.repo.GetByID(ctx, businessID, *currentID)
		if err == nil {
			return refsOf(st), nil
		}
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
			return TemplateRefs{}, err
		}
		// Stored stage was deleted; fall through to the default.
		s.log.Warn("conversation references deleted stage",
			"conversation_id", conversationID, "stage_id", *currentID)
	}

	def, err := s.repo.GetDefault(ctx, businessID)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindNotFound {
			return TemplateRefs{}, apperr.Conflict(msgNoStagesConfigured)
		}
		return TemplateRefs{}, err
	}

	if err := s.conversations.SetCurrentStage(ctx, businessID, conversationID, def.ID); err != nil {
		s.log.Warn("stage assignment persist failed",
			"conversation_id", conversationID, "stage_id", def.ID, "error", err)
	}
	return refsOf(def), nil
}

// Transition persists a stage change on a conversation and returns the new
// stage's template references.
func (s *Service) Transition(ctx context.Context, businessID, conversationID, stageID uuid.UUID) (TemplateRefs, error) {
	st, err := s.repo.GetByID(ctx, businessID, stageID)
	if err != nil {
		return TemplateRefs{}, err
	}
	if err := s.conversations.SetCurrentStage(ctx, businessID, conversationID, stageID); err != nil {
		return refsOf(st), err
	}
	return refsOf(st), nil
}

// ListStages returns the business's stages in the requested order.
func (s *Service) ListStages(ctx context.Context, businessID uuid.UUID, order repository.ListOrder) ([]repository.Stage, error) {
	return s.repo.List(ctx, businessID, order)
}

// ListStageSummaries implements variables.StageLister for the stage_catalog
// resolver.
func (s *Service) ListStageSummaries(ctx context.Context, businessID uuid.UUID) ([]variables.StageSummary, error) {
	stages, err := s.repo.List(ctx, businessID, repository.OrderByCreated)
	if err != nil {
		return nil, err
	}
	out := make([]variables.StageSummary, 0, len(stages))
	for _, st := range stages {
		out = append(out, variables.StageSummary{Name: st.Name, Description: st.Description})
	}
	return out, nil
}

// SeedDefaultStage creates an initial default stage for a new business so the
// pipeline always has somewhere to land. Idempotent: does nothing when the
// business already has stages.
func (s *Service) SeedDefaultStage(ctx context.Context, businessID uuid.UUID) error {
	_, err := s.repo.GetDefault(ctx, businessID)
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		return err
	}

	_, err = s.repo.Create(ctx, repository.CreateStageParams{
		BusinessID:  businessID,
		Name:        "General",
		Description: "Default conversation stage",
		Type:        "general",
		IsDefault:   true,
	})
	return err
}
