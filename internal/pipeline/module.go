// Package pipeline provides the message processing bounded context module.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stageflow_backend/internal/events"
	apphttp "stageflow_backend/internal/http"
	"stageflow_backend/internal/pipeline/controls"
	"stageflow_backend/internal/pipeline/domain"
	"stageflow_backend/internal/pipeline/handler"
	"stageflow_backend/internal/pipeline/ports"
	"stageflow_backend/internal/pipeline/processlog"
	"stageflow_backend/internal/pipeline/repository"
	"stageflow_backend/internal/pipeline/service"
	stagesvc "stageflow_backend/internal/stages/service"
	templatesvc "stageflow_backend/internal/templates/service"
	"stageflow_backend/internal/variables"
	"stageflow_backend/platform/config"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/validator"
)

// Module is the pipeline bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the pipeline service with its stores. With a Redis client
// the process log and stop flags are shared across instances; without one
// they fall back to bounded in-process stores.
func NewModule(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	stages *stagesvc.Service,
	templates *templatesvc.Service,
	registry *variables.Registry,
	generator ports.Generator,
	redisClient *redis.Client,
	cfg config.PipelineConfig,
	eventBus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) (*Module, error) {
	aliases, err := domain.LoadAliases(cfg.GetStageAliasFile())
	if err != nil {
		return nil, err
	}

	var logs processlog.Store
	var stops controls.StopStore
	if redisClient != nil {
		logs = processlog.NewRedisStore(redisClient, cfg.GetProcessLogTTL(), cfg.GetProcessLogMaxEntries())
		stops = controls.NewRedisStopStore(redisClient, cfg.GetStopFlagTTL())
	} else {
		logs = processlog.NewMemoryStore(cfg.GetProcessLogMaxEntries(), cfg.GetProcessLogTTL())
		stops = controls.NewMemoryStopStore(cfg.GetStopFlagTTL())
	}

	variables.RegisterBuiltins(registry, &historyReader{messages: messages}, stages, variables.BuiltinOptions{
		HistoryMax:        cfg.GetHistoryMaxMessages(),
		IncludeTimestamps: cfg.GetHistoryIncludeTimestamps(),
	})

	svc := service.New(conversations, messages, stages, templates, generator, logs, stops, aliases, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}, nil
}

func (m *Module) Name() string { return "pipeline" }

// Service exposes the pipeline service to other modules and workers.
func (m *Module) Service() *service.Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// historyReader adapts the message repository to the variable registry's
// history contract.
type historyReader struct {
	messages repository.MessageRepository
}

func (h *historyReader) ListConversationMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]variables.HistoryMessage, error) {
	messages, err := h.messages.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	return toHistory(messages), nil
}

func (h *historyReader) ListUserMessages(ctx context.Context, businessID uuid.UUID, userID string, limit int) ([]variables.HistoryMessage, error) {
	messages, err := h.messages.ListByUser(ctx, businessID, userID, limit)
	if err != nil {
		return nil, err
	}
	return toHistory(messages), nil
}

func toHistory(messages []repository.Message) []variables.HistoryMessage {
	out := make([]variables.HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, variables.HistoryMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return out
}
