package scheduler

import (
	"context"
	"fmt"

	"stageflow_backend/internal/pipeline/repository"
	"stageflow_backend/internal/pipeline/service"
	"stageflow_backend/platform/config"
	"stageflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes pipeline tasks. Webhook messages flow through here so a
// slow model call never blocks the webhook endpoint.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	pipeline  *service.Service
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pipeline *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	sched := asynq.NewScheduler(opt, nil)
	if _, err := sched.Register("@every 15m", NewPruneProcessLogsTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register prune schedule: %w", err)
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: sched,
		mux:       mux,
		pipeline:  pipeline,
		log:       log,
	}

	mux.HandleFunc(TaskProcessMessage, w.handleProcessMessage)
	mux.HandleFunc(TaskPruneProcessLogs, w.handlePruneProcessLogs)

	return w, nil
}

func (w *Worker) handleProcessMessage(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseProcessMessagePayload(task)
	if err != nil {
		return err
	}

	businessID, err := uuid.Parse(payload.BusinessID)
	if err != nil {
		return err
	}

	result, err := w.pipeline.ProcessMessage(ctx, service.Input{
		BusinessID: businessID,
		UserID:     payload.UserID,
		Content:    payload.Content,
		SenderRole: repository.RoleUser,
	})
	if err != nil {
		w.log.Error("queued message processing failed",
			"business_id", payload.BusinessID,
			"channel", payload.Channel,
			"process_log_id", result.ProcessLogID,
			"error", err)
		return err
	}

	w.log.Info("queued message processed",
		"business_id", payload.BusinessID,
		"channel", payload.Channel,
		"conversation_id", result.ConversationID,
		"ai_stopped", result.AIStopped)
	return nil
}

func (w *Worker) handlePruneProcessLogs(ctx context.Context, _ *asynq.Task) error {
	removed, err := w.pipeline.Logs().Prune(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		w.log.Info("process logs pruned", "removed", removed)
	}
	return nil
}

// Run blocks until ctx is canceled or the server fails to start. A graceful
// shutdown returns nil.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return fmt.Errorf("worker not initialized")
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("scheduler stopped", "error", err)
		}
	}()

	return w.server.Run(w.mux)
}
