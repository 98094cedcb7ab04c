package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"stageflow_backend/internal/adapters"
	"stageflow_backend/internal/business"
	"stageflow_backend/internal/config"
	"stageflow_backend/internal/events"
	apphttp "stageflow_backend/internal/http"
	"stageflow_backend/internal/http/router"
	"stageflow_backend/internal/notification"
	"stageflow_backend/internal/pipeline"
	pipelinerepo "stageflow_backend/internal/pipeline/repository"
	"stageflow_backend/internal/scheduler"
	"stageflow_backend/internal/stages"
	"stageflow_backend/internal/templates"
	"stageflow_backend/internal/variables"
	"stageflow_backend/internal/webhook"
	"stageflow_backend/migrations"
	"stageflow_backend/platform/db"
	"stageflow_backend/platform/logger"
	"stageflow_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	redisClient := newRedisClient(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	generator, err := adapters.NewGenerationGateway(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize generation gateway", "error", err)
		panic("failed to initialize generation gateway: " + err.Error())
	}

	queue, closeQueue := initQueueClient(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	conversations := pipelinerepo.NewConversations(pool)
	messages := pipelinerepo.NewMessages(pool)
	registry := variables.NewRegistry(log)

	templatesModule := templates.NewModule(pool, registry, val, log)
	stagesModule := stages.NewModule(pool, conversations, eventBus, val, log)
	businessModule := business.NewModule(pool, eventBus, val, log)

	pipelineModule, err := pipeline.NewModule(
		conversations, messages,
		stagesModule.Service(), templatesModule.Service(),
		registry, generator, redisClient, cfg, eventBus, val, log,
	)
	if err != nil {
		log.Error("failed to initialize pipeline module", "error", err)
		panic("failed to initialize pipeline module: " + err.Error())
	}

	var enqueuer scheduler.MessageEnqueuer
	if queue != nil {
		enqueuer = queue
	}
	webhookModule := webhook.NewModule(enqueuer, val, log)
	notification.NewModule(cfg, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		Keys:     businessModule.Service(),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			businessModule,
			stagesModule,
			templatesModule,
			pipelineModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

// newRedisClient builds the shared Redis client for process logs and stop
// flags. Returns nil when REDIS_URL is not set, which switches the pipeline
// to in-process stores.
func newRedisClient(cfg *config.Config, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; using in-process pipeline stores")
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt)
}

func initQueueClient(cfg *config.Config, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; webhook message queueing disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
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
