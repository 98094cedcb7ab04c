// Package stages provides the stage catalog bounded context module.
package stages

import (
	"context"

	"stageflow_backend/internal/events"
	apphttp "stageflow_backend/internal/http"
	"stageflow_backend/internal/stages/handler"
	"stageflow_backend/internal/stages/repository"
	"stageflow_backend/internal/stages/service"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the stage catalog bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the stage repository, catalog service and handler, and
// subscribes to BusinessCreated so every new business starts with a default
// stage.
func NewModule(pool *pgxpool.Pool, conversations service.ConversationStageStore, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, conversations, log)

	eventBus.Subscribe(events.BusinessCreated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.BusinessCreated)
		if !ok {
			return nil
		}
		if err := svc.SeedDefaultStage(ctx, e.BusinessID); err != nil {
			log.Error("seed default stage failed", "business_id", e.BusinessID, "error", err)
			return err
		}
		return nil
	}))

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string { return "stages" }

// Service exposes the catalog service to the pipeline module.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/stages"))
}
