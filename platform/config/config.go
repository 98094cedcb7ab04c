// Package config provides application configuration contracts.
// This is part of the platform layer and contains no business logic.
package config

import (
	"time"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// JWTConfig provides JWT validation settings for operator middleware.
type JWTConfig interface {
	GetOperatorJWTSecret() string
}

// RedisConfig provides settings for Redis-backed stores and queues.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// GenerationConfig provides settings for the model-service gateway.
type GenerationConfig interface {
	GetGenerationProvider() string
	GetGenerationAPIKey() string
	GetGenerationBaseURL() string
	GetGenerationModel() string
	GetGenerationTimeout() time.Duration
}

// EmailConfig provides settings for operator alert email delivery.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetOpsAlertAddress() string
}

// PipelineConfig provides tunables for the message pipeline.
type PipelineConfig interface {
	GetHistoryMaxMessages() int
	GetHistoryIncludeTimestamps() bool
	GetProcessLogTTL() time.Duration
	GetProcessLogMaxEntries() int
	GetStopFlagTTL() time.Duration
	GetStageAliasFile() string
}
