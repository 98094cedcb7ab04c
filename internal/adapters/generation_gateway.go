// Package adapters bridges the pipeline's ports to concrete external
// services.
package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stageflow_backend/internal/pipeline/ports"
	"stageflow_backend/platform/ai/googleai"
	"stageflow_backend/platform/ai/openaicompat"
	"stageflow_backend/platform/config"
	"stageflow_backend/platform/logger"
)

// completer is the shared surface of the model clients.
type completer interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// GenerationGateway implements ports.Generator on top of a model client. It
// adds a per-call timeout and a single retry so a hung or flaky upstream
// cannot block a message indefinitely.
type GenerationGateway struct {
	client  completer
	timeout time.Duration
	log     *logger.Logger
}

// NewGenerationGateway builds the gateway for the configured provider.
// Supported providers are "openai" (and any OpenAI-compatible endpoint via
// base URL) and "google".
func NewGenerationGateway(ctx context.Context, cfg config.GenerationConfig, log *logger.Logger) (*GenerationGateway, error) {
	timeout := cfg.GetGenerationTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var client completer
	switch cfg.GetGenerationProvider() {
	case "google":
		c, err := googleai.NewClient(ctx, googleai.Config{
			APIKey: cfg.GetGenerationAPIKey(),
			Model:  cfg.GetGenerationModel(),
		})
		if err != nil {
			return nil, fmt.Errorf("create google client: %w", err)
		}
		client = c
	case "openai", "":
		client = openaicompat.NewClient(openaicompat.Config{
			APIKey:  cfg.GetGenerationAPIKey(),
			BaseURL: cfg.GetGenerationBaseURL(),
			Model:   cfg.GetGenerationModel(),
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GetGenerationProvider())
	}

	return &GenerationGateway{client: client, timeout: timeout, log: log}, nil
}

var _ ports.Generator = (*GenerationGateway)(nil)

// Generate calls the model once, retrying a single time on failure. The
// retry only happens while the caller's context is still alive.
func (g *GenerationGateway) Generate(ctx context.Context, call ports.Call) (string, error) {
	log := g.log
	if call.BusinessID != uuid.Nil {
		log = log.WithBusinessID(call.BusinessID.String())
	}
	if call.ConversationID != uuid.Nil {
		log = log.WithConversationID(call.ConversationID.String())
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		start := time.Now()
		text, err := g.client.Complete(callCtx, call.SystemPrompt, call.Prompt)
		cancel()
		log.GenerationCall(string(call.Type), g.client.Name(), float64(time.Since(start).Milliseconds()), err)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", fmt.Errorf("generation %s call: %w", call.Type, lastErr)
}
