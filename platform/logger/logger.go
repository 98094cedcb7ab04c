// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// BusinessIDKey is the context key for the tenant business ID
	BusinessIDKey contextKey = "business_id"
	// ConversationIDKey is the context key for conversation ID
	ConversationIDKey contextKey = "conversation_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, business_id, and conversation_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if businessID, ok := ctx.Value(BusinessIDKey).(string); ok && businessID != "" {
		newLogger = newLogger.WithBusinessID(businessID)
	}

	if conversationID, ok := ctx.Value(ConversationIDKey).(string); ok && conversationID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("conversation_id", conversationID))}
	}

	return newLogger
}

// WithBusinessID returns a logger scoped to a tenant business.
func (l *Logger) WithBusinessID(businessID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("business_id", businessID)),
	}
}

// WithConversationID returns a logger scoped to a conversation.
func (l *Logger) WithConversationID(conversationID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("conversation_id", conversationID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// GenerationCall logs a round trip to the model service.
func (l *Logger) GenerationCall(callType, provider string, latencyMs float64, err error) {
	if err != nil {
		l.Error("generation_call",
			slog.String("call_type", callType),
			slog.String("provider", provider),
			slog.Float64("latency_ms", latencyMs),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("generation_call",
		slog.String("call_type", callType),
		slog.String("provider", provider),
		slog.Float64("latency_ms", latencyMs),
	)
}

// PipelineStep logs a single pipeline step outcome.
func (l *Logger) PipelineStep(step, status string, conversationID string) {
	l.Info("pipeline_step",
		slog.String("step", step),
		slog.String("status", status),
		slog.String("conversation_id", conversationID),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
