// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"docqa-workers/internal/answers"
	"docqa-workers/internal/common/aws"
	"docqa-workers/internal/common/camunda"
	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/observability"
	"docqa-workers/internal/genai"
	"docqa-workers/internal/reasoning/orchestrator"
	"docqa-workers/internal/tasks"

	gpa "docqa-workers/internal/workers/answers/generate-project-answers"
	grs "docqa-workers/internal/workers/answers/get-request-status"
	gcr "docqa-workers/internal/workers/chat/generate-chat-response"
	se "docqa-workers/internal/workers/retrieval/search-evidence"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.FromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("provider", cfg.APIs.Provider),
		zap.String("retrieval", cfg.Retrieval.Backend),
	)

	obs := observability.New("docqa-workers")
	defer obs.Shutdown()

	ctx := context.Background()
	rt := &runtime{cfg: cfg, zapLog: zapLog, log: log, obs: obs}
	defer rt.close()

	// --- Init Zeebe Client with retry ---
	err = retryWithBackoff(func() error {
		var err error
		rt.zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	if err := rt.connectStores(ctx); err != nil {
		zapLog.Fatal("store initialization failed", zap.Error(err))
	}

	index, err := rt.buildIndex(ctx)
	if err != nil {
		zapLog.Fatal("retrieval index initialization failed", zap.Error(err))
	}

	provider, err := genai.NewFromConfig(cfg.APIs, log)
	if err != nil {
		zapLog.Fatal("provider initialization failed", zap.Error(err))
	}

	orch := orchestrator.New(orchestrator.ConfigFrom(cfg.Reasoning), index, provider, obs, log)

	var tracker tasks.Tracker = tasks.NewMemoryTracker()
	if rt.redis != nil {
		tracker = tasks.NewRedisTracker(rt.redis.Client, config.GetDuration(cfg.Tasks.StatusTTL))
	}
	rt.queue = tasks.NewQueue(tasks.QueueConfig{Concurrency: cfg.Tasks.Concurrency}, tracker, log)

	notifier, err := aws.NewNotifier(ctx, aws.Options{
		Region:    cfg.Notifications.Region,
		SNSTopic:  cfg.Notifications.SNS.TopicARN,
		SESFrom:   cfg.Notifications.SES.FromEmail,
		SESTo:     cfg.Notifications.SES.ToEmails,
		EnableSNS: cfg.Notifications.SNS.Enabled,
		EnableSES: cfg.Notifications.SES.Enabled,
	})
	if err != nil {
		zapLog.Fatal("notifier initialization failed", zap.Error(err))
	}

	// --- Register Workers ---
	rt.register(gcr.TaskType, func(wcfg config.WorkerConfig) camunda.JobHandler {
		return gcr.NewHandler(wcfg, orch, log, obs)
	})
	rt.register(se.TaskType, func(wcfg config.WorkerConfig) camunda.JobHandler {
		return se.NewHandler(wcfg, index, log, obs)
	})
	rt.register(grs.TaskType, func(wcfg config.WorkerConfig) camunda.JobHandler {
		return grs.NewHandler(wcfg, tracker, log, obs)
	})
	if rt.pg != nil {
		service := answers.NewService(answers.NewPostgresStore(rt.pg.DB), orch, notifier, log)
		rt.register(gpa.TaskType, func(wcfg config.WorkerConfig) camunda.JobHandler {
			return gpa.NewHandler(wcfg, service, rt.queue, log, obs)
		})
	} else {
		zapLog.Warn("postgres not configured, batch answering disabled", zap.String("taskType", gpa.TaskType))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(rt.workers)))

	// --- Health & Metrics Server ---
	srv := rt.healthServer(":8080")
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	rt.stopWorkers()
	if err := rt.queue.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Task queue did not drain", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
