package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/visitor-insights/internal/app"
	"github.com/odyssey-erp/visitor-insights/internal/dashboard"
	"github.com/odyssey-erp/visitor-insights/internal/dashboard/charts"
	dashboardhttp "github.com/odyssey-erp/visitor-insights/internal/dashboard/http"
	"github.com/odyssey-erp/visitor-insights/internal/dashboard/svg"
	"github.com/odyssey-erp/visitor-insights/internal/observability"
	"github.com/odyssey-erp/visitor-insights/internal/platform/cache"
	"github.com/odyssey-erp/visitor-insights/internal/visitors/api"
	"github.com/odyssey-erp/visitor-insights/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		logger.Info("redis not configured, api responses are not cached")
	case err != nil:
		logger.Warn("redis unavailable, api responses are not cached", slog.Any("error", err))
	default:
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	client := newAPIClient(ctx, cfg, redisClient, logger)

	anchors := make([]string, 0, len(charts.AllCharts))
	for _, id := range charts.AllCharts {
		anchors = append(anchors, id.Anchor())
	}
	surface := svg.NewSurface(svg.DefaultWidth, svg.DefaultHeight, anchors...)
	chartManager := charts.NewManager(surface, surface, charts.ThemeFor(cfg.DarkMode), logger)

	dash := dashboard.New(client,
		dashboard.WithLogger(logger),
		dashboard.WithCharts(chartManager),
		dashboard.WithObserver(metrics),
		dashboard.WithPageLimit(cfg.DefaultPageLimit),
		dashboard.WithDays(cfg.DailyStatsDays),
		dashboard.WithActivePolling(cfg.ActivePollInterval, cfg.ActiveWindowMinutes),
		dashboard.WithActiveCallback(metrics.SetActiveVisitors),
		dashboard.WithFetchTimeout(cfg.AnalyticsAPITimeout*time.Duration(cfg.AnalyticsAPIMaxRetries+1)),
	)
	defer func() {
		if err := dash.Close(); err != nil {
			logger.Warn("close dashboard", slog.Any("error", err))
		}
	}()

	exporter := dashboard.NewExporter(client, dashboard.NewMemoryBlobs(),
		dashboard.WithExportTracker(dash),
		dashboard.WithExportLogger(logger),
	)
	dashboardHandler := dashboardhttp.NewHandler(logger, dash, chartManager, surface, exporter)
	if cfg.ExportDir != "" {
		dashboardHandler.WithArchive(dashboard.DirDownloader{Dir: cfg.ExportDir})
	}

	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = jobClient.Close() }()
		inspector := asynq.NewInspector(redisOpts)
		defer func() { _ = inspector.Close() }()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	initial := dash.Start(ctx)
	go func() {
		if err := initial.Wait(); err != nil {
			logger.Warn("initial dashboard load incomplete", slog.String("cascade", initial.ID()), slog.Any("error", err))
			return
		}
		logger.Info("initial dashboard load complete", slog.String("cascade", initial.ID()))
	}()

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func newAPIClient(ctx context.Context, cfg *app.Config, redisClient *redis.Client, logger *slog.Logger) *api.Client {
	executor := api.DefaultExecutorConfig()
	executor.MaxRetries = cfg.AnalyticsAPIMaxRetries

	opts := []api.Option{
		api.WithHTTPClient(&http.Client{Timeout: cfg.AnalyticsAPITimeout}),
		api.WithExecutorConfig(executor),
		api.WithLogger(logger),
	}
	if redisClient != nil {
		responseCache := api.NewCache(redisClient, cfg.CacheTTL)
		if err := responseCache.ListenForInvalidation(ctx, "", logger); err != nil {
			logger.Warn("subscribe cache invalidation", slog.Any("error", err))
		}
		opts = append(opts, api.WithCache(responseCache))
	}
	return api.New(cfg.AnalyticsAPIURL, opts...)
}
