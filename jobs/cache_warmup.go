package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/visitor-insights/internal/jobs"
	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

const (
	defaultWarmupDays = 7
	warmupConcurrency = 4
	projectTimeout    = 20 * time.Second
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CacheBumper invalidates cached API responses.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// CacheWarmupJob issues the dashboard's read queries through a caching
// client so dashboards opened afterwards are served from Redis.
type CacheWarmupJob struct {
	Client  visitors.Client
	Cache   CacheBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(client visitors.Client, cache CacheBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{
		Client:  client,
		Cache:   cache,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Client == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("cache warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	periods, err := normalizePeriods(payload.Periods)
	if err != nil {
		return fmt.Errorf("cache warmup: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Days <= 0 {
		payload.Days = defaultWarmupDays
	}

	tracker := j.metrics().Track(TaskCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Bool("bump", payload.Bump), slog.Int("days", payload.Days))
	logger.Info("starting cache warmup")
	start := j.now()

	if payload.Bump && j.Cache != nil {
		if err := j.Cache.Bump(ctx); err != nil {
			resultErr = fmt.Errorf("cache warmup: bump: %w", err)
			logger.Error("bump cache version", slog.Any("error", err))
			return resultErr
		}
	}

	projects := payload.Projects
	if len(projects) == 0 {
		projects, err = j.discoverProjects(ctx)
		if err != nil {
			resultErr = err
			logger.Error("discover projects", slog.Any("error", err))
			return resultErr
		}
	}

	counter := newWarmCounter()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	g.Go(func() error { return j.warmGlobal(gctx, counter) })
	for _, project := range projects {
		project := project
		g.Go(func() error {
			if err := j.warmProject(gctx, project, periods, payload.Days, counter); err != nil {
				return fmt.Errorf("project %q: %w", project, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		resultErr = fmt.Errorf("cache warmup: %w", err)
		logger.Error("warm cache", slog.Any("error", err))
		return resultErr
	}

	for endpoint, n := range counter.snapshot() {
		j.metrics().AddWarmed(endpoint, n)
	}
	logger.Info("completed cache warmup",
		slog.Int("projects", len(projects)),
		slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

// discoverProjects lists every tracked project plus the "All" aggregate.
func (j *CacheWarmupJob) discoverProjects(ctx context.Context) ([]string, error) {
	summaries, err := j.Client.TotalVisitorCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache warmup: list projects: %w", err)
	}
	projects := make([]string, 0, len(summaries)+1)
	projects = append(projects, visitors.AllOption)
	for _, s := range summaries {
		if s.ProjectName == "" || s.ProjectName == visitors.AllOption {
			continue
		}
		projects = append(projects, s.ProjectName)
	}
	return projects, nil
}

func (j *CacheWarmupJob) warmGlobal(ctx context.Context, counter *warmCounter) error {
	if _, err := j.Client.Locations(ctx); err != nil {
		return fmt.Errorf("locations: %w", err)
	}
	counter.add("locations")
	if _, err := j.Client.Devices(ctx); err != nil {
		return fmt.Errorf("devices: %w", err)
	}
	counter.add("devices")
	if _, err := j.Client.BrowserOSStats(ctx); err != nil {
		return fmt.Errorf("browser-os: %w", err)
	}
	counter.add("browser-os")
	if _, err := j.Client.VisitorGrowth(ctx); err != nil {
		return fmt.Errorf("growth: %w", err)
	}
	counter.add("growth")
	return nil
}

func (j *CacheWarmupJob) warmProject(ctx context.Context, project string, periods []visitors.Period, days int, counter *warmCounter) error {
	ctx, cancel := context.WithTimeout(ctx, projectTimeout)
	defer cancel()

	if _, err := j.Client.VisitorCount(ctx, project); err != nil {
		return fmt.Errorf("visitor count: %w", err)
	}
	counter.add("visitor-count")
	for _, period := range periods {
		if _, err := j.Client.VisitorTrend(ctx, project, period); err != nil {
			return fmt.Errorf("trend %s: %w", period, err)
		}
		counter.add("trend")
	}
	if _, err := j.Client.VisitorStatistics(ctx, project); err != nil {
		return fmt.Errorf("statistics: %w", err)
	}
	counter.add("statistics")
	if _, err := j.Client.DailyStats(ctx, project, days); err != nil {
		return fmt.Errorf("daily stats: %w", err)
	}
	counter.add("daily-stats")
	return nil
}

func normalizePeriods(periods []visitors.Period) ([]visitors.Period, error) {
	if len(periods) == 0 {
		return []visitors.Period{visitors.PeriodDaily, visitors.PeriodWeekly, visitors.PeriodMonthly}, nil
	}
	for _, p := range periods {
		if _, err := visitors.ParsePeriod(string(p)); err != nil {
			return nil, err
		}
	}
	return periods, nil
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

type warmCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newWarmCounter() *warmCounter {
	return &warmCounter{counts: make(map[string]int)}
}

func (c *warmCounter) add(endpoint string) {
	c.mu.Lock()
	c.counts[endpoint]++
	c.mu.Unlock()
}

func (c *warmCounter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
