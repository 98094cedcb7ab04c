// Package business provides the tenant management bounded context module.
package business

import (
	"stageflow_backend/internal/business/handler"
	"stageflow_backend/internal/business/repository"
	"stageflow_backend/internal/business/service"
	"stageflow_backend/internal/events"
	apphttp "stageflow_backend/internal/http"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the business bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the business repository, service and handler.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string { return "business" }

// Service exposes key verification to the auth middleware.
func (m *Module) Service() *service.Service { return m.service }

// RegisterRoutes mounts tenant management under the operator-only group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/businesses"))
}
