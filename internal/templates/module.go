// Package templates provides the prompt template bounded context module.
package templates

import (
	apphttp "stageflow_backend/internal/http"
	"stageflow_backend/internal/templates/handler"
	"stageflow_backend/internal/templates/repository"
	"stageflow_backend/internal/templates/service"
	"stageflow_backend/internal/variables"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the templates bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the template repository, rendering service and handler.
func NewModule(pool *pgxpool.Pool, registry *variables.Registry, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, registry, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string { return "templates" }

// Service exposes the rendering service to other modules.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/templates"))
}
