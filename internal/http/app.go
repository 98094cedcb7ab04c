// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"github.com/google/uuid"

	"stageflow_backend/internal/events"
	"stageflow_backend/platform/config"
	"stageflow_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// KeyVerifier authenticates an API key and resolves the owning business.
// Implemented by the business service.
type KeyVerifier interface {
	VerifyKey(ctx context.Context, key string) (uuid.UUID, error)
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and JWT settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// Keys authenticates business API keys on protected routes.
	Keys KeyVerifier
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
