package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	OperatorJWTSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	GenerationProvider string
	GenerationAPIKey   string
	GenerationBaseURL  string
	GenerationModel    string
	GenerationTimeout  time.Duration

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	OpsAlertAddress  string

	HistoryMaxMessages       int
	HistoryIncludeTimestamps bool
	ProcessLogTTL            time.Duration
	ProcessLogMaxEntries     int
	StopFlagTTL              time.Duration
	StageAliasFile           string
}

// Load reads configuration from the environment (and .env in development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true")

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		OperatorJWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		GenerationProvider: getEnv("GENERATION_PROVIDER", "openai"),
		GenerationAPIKey:   getEnv("GENERATION_API_KEY", ""),
		GenerationBaseURL:  getEnv("GENERATION_BASE_URL", ""),
		GenerationModel:    getEnv("GENERATION_MODEL", ""),
		GenerationTimeout:  mustDuration(getEnv("GENERATION_TIMEOUT", "60s")),

		EmailEnabled:     emailEnabled,
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Stageflow"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		OpsAlertAddress:  getEnv("OPS_ALERT_ADDRESS", ""),

		HistoryMaxMessages:       mustInt(getEnv("HISTORY_MAX_MESSAGES", "20")),
		HistoryIncludeTimestamps: strings.EqualFold(getEnv("HISTORY_INCLUDE_TIMESTAMPS", "false"), "true"),
		ProcessLogTTL:            mustDuration(getEnv("PROCESS_LOG_TTL", "24h")),
		ProcessLogMaxEntries:     mustInt(getEnv("PROCESS_LOG_MAX_ENTRIES", "1000")),
		StopFlagTTL:              mustDuration(getEnv("STOP_FLAG_TTL", "24h")),
		StageAliasFile:           getEnv("STAGE_ALIAS_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OperatorJWTSecret == "" {
		return nil, fmt.Errorf("OPERATOR_JWT_SECRET is required")
	}
	if cfg.GenerationAPIKey == "" {
		return nil, fmt.Errorf("GENERATION_API_KEY is required")
	}
	if cfg.GenerationProvider != "openai" && cfg.GenerationProvider != "google" {
		return nil, fmt.Errorf("GENERATION_PROVIDER must be openai or google, got %q", cfg.GenerationProvider)
	}
	if emailEnabled && (cfg.SMTPHost == "" || cfg.EmailFromAddress == "" || cfg.OpsAlertAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST, EMAIL_FROM_ADDRESS and OPS_ALERT_ADDRESS are required when EMAIL_ENABLED is true")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// =============================================================================
// platform/config interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetOperatorJWTSecret() string { return c.OperatorJWTSecret }

func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetGenerationProvider() string       { return c.GenerationProvider }
func (c *Config) GetGenerationAPIKey() string         { return c.GenerationAPIKey }
func (c *Config) GetGenerationBaseURL() string        { return c.GenerationBaseURL }
func (c *Config) GetGenerationModel() string          { return c.GenerationModel }
func (c *Config) GetGenerationTimeout() time.Duration { return c.GenerationTimeout }

func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetOpsAlertAddress() string  { return c.OpsAlertAddress }

func (c *Config) GetHistoryMaxMessages() int        { return c.HistoryMaxMessages }
func (c *Config) GetHistoryIncludeTimestamps() bool { return c.HistoryIncludeTimestamps }
func (c *Config) GetProcessLogTTL() time.Duration   { return c.ProcessLogTTL }
func (c *Config) GetProcessLogMaxEntries() int      { return c.ProcessLogMaxEntries }
func (c *Config) GetStopFlagTTL() time.Duration     { return c.StopFlagTTL }
func (c *Config) GetStageAliasFile() string         { return c.StageAliasFile }
