package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"stageflow_backend/internal/adapters"
	"stageflow_backend/internal/config"
	"stageflow_backend/internal/events"
	"stageflow_backend/internal/pipeline"
	pipelinerepo "stageflow_backend/internal/pipeline/repository"
	"stageflow_backend/internal/scheduler"
	stagesrepo "stageflow_backend/internal/stages/repository"
	stagesvc "stageflow_backend/internal/stages/service"
	templatesrepo "stageflow_backend/internal/templates/repository"
	templatesvc "stageflow_backend/internal/templates/service"
	"stageflow_backend/internal/variables"
	"stageflow_backend/platform/db"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/validator"
)

// The worker consumes queued webhook messages and runs them through the
// same pipeline service the API uses, plus periodic process log pruning.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required for the worker")
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		panic("invalid REDIS_URL: " + err.Error())
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	generator, err := adapters.NewGenerationGateway(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize generation gateway", "error", err)
		panic("failed to initialize generation gateway: " + err.Error())
	}

	conversations := pipelinerepo.NewConversations(pool)
	messages := pipelinerepo.NewMessages(pool)
	registry := variables.NewRegistry(log)

	stagesService := stagesvc.New(stagesrepo.New(pool), conversations, log)
	templatesService := templatesvc.New(templatesrepo.New(pool), registry, log)

	pipelineModule, err := pipeline.NewModule(
		conversations, messages,
		stagesService, templatesService,
		registry, generator, redisClient, cfg, eventBus, val, log,
	)
	if err != nil {
		log.Error("failed to initialize pipeline module", "error", err)
		panic("failed to initialize pipeline module: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg, pipelineModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	if err := worker.Run(ctx); err != nil {
		log.Error("worker stopped", "error", err)
		panic("worker stopped: " + err.Error())
	}
	log.Info("worker shut down")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
