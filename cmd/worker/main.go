package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/visitor-insights/internal/app"
	"github.com/odyssey-erp/visitor-insights/internal/platform/cache"
	"github.com/odyssey-erp/visitor-insights/internal/visitors/api"
	"github.com/odyssey-erp/visitor-insights/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	responseCache := api.NewCache(redisClient, cfg.CacheTTL)
	executor := api.DefaultExecutorConfig()
	executor.MaxRetries = cfg.AnalyticsAPIMaxRetries
	client := api.New(cfg.AnalyticsAPIURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.AnalyticsAPITimeout}),
		api.WithExecutorConfig(executor),
		api.WithCache(responseCache),
		api.WithLogger(logger),
	)

	warmupJob := jobs.NewCacheWarmupJob(client, responseCache, logger, nil)

	var cron []jobs.CronRegistration
	if cfg.WarmupCron != "" {
		warmupTask, err := jobs.NewCacheWarmupTask(jobs.CacheWarmupPayload{Days: cfg.DailyStatsDays})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.WarmupCron,
			Task:    warmupTask,
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCacheWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("warmup_cron", cfg.WarmupCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
