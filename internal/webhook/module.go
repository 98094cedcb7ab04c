package webhook

import (
	apphttp "stageflow_backend/internal/http"
	"stageflow_backend/internal/scheduler"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/validator"
)

// Module is the webhook bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule wires the webhook service to the task queue.
func NewModule(enqueuer scheduler.MessageEnqueuer, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(enqueuer, log)
	return &Module{handler: NewHandler(svc, val)}
}

func (m *Module) Name() string { return "webhook" }

// RegisterRoutes mounts the channel webhook under the API-key group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/webhook/:channel", m.handler.HandleInbound)
}
