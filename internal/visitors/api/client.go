// Package api implements the analytics backend client over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// StatusError reports a non-2xx response from the analytics backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics api: %s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// Client talks to the analytics backend. It implements visitors.Client.
type Client struct {
	baseURL     string
	client      *http.Client
	executor    failsafe.Executor[*http.Response]
	shouldRetry func(resp *http.Response, err error) bool
	cache       *Cache
	logger      *slog.Logger
}

var _ visitors.Client = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// New constructs a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	cfg := DefaultExecutorConfig()
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 10 * time.Second},
		executor:    NewExecutor(cfg),
		shouldRetry: cfg.ShouldRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithExecutorConfig rebuilds the retry executor.
func WithExecutorConfig(cfg ExecutorConfig) Option {
	return func(c *Client) {
		cfg = normalizeExecutorConfig(cfg)
		c.executor = NewExecutor(cfg)
		c.shouldRetry = cfg.ShouldRetry
	}
}

// WithCache enables response caching for read operations.
func WithCache(cache *Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// TotalVisitorCounts lists unique visitors per project.
func (c *Client) TotalVisitorCounts(ctx context.Context) ([]visitors.ProjectSummary, error) {
	return cachedGet[[]visitors.ProjectSummary](ctx, c, []string{"total"}, "/total-visits", nil)
}

// VisitorCount returns the unique visitor count of a project.
func (c *Client) VisitorCount(ctx context.Context, project string) (visitors.ProjectSummary, error) {
	return cachedGet[visitors.ProjectSummary](ctx, c, []string{"count", project}, "/visit/"+url.PathEscape(project), nil)
}

// TrackVisit records a visit for the project.
func (c *Client) TrackVisit(ctx context.Context, project string) (visitors.Visitor, error) {
	var visitor visitors.Visitor
	if err := c.send(ctx, http.MethodPost, "/visit/"+url.PathEscape(project), nil, &visitor, false); err != nil {
		return visitors.Visitor{}, err
	}
	c.invalidate(ctx)
	return visitor, nil
}

// Locations lists visitor counts per location.
func (c *Client) Locations(ctx context.Context) ([]visitors.LocationSummary, error) {
	return cachedGet[[]visitors.LocationSummary](ctx, c, []string{"locations"}, "/locations", nil)
}

// Devices lists visitor counts per device.
func (c *Client) Devices(ctx context.Context) ([]visitors.DeviceSummary, error) {
	return cachedGet[[]visitors.DeviceSummary](ctx, c, []string{"devices"}, "/devices", nil)
}

// VisitorTrend returns the visitor trend of a project bucketed by period.
func (c *Client) VisitorTrend(ctx context.Context, project string, period visitors.Period) ([]visitors.TrendPoint, error) {
	query := url.Values{"period": {string(period)}}
	return cachedGet[[]visitors.TrendPoint](ctx, c, []string{"trend", project, string(period)}, "/visit-trend/"+url.PathEscape(project), query)
}

// VisitorStatistics returns the most used browser, device and location of a project.
func (c *Client) VisitorStatistics(ctx context.Context, project string) (visitors.VisitorStatistics, error) {
	return cachedGet[visitors.VisitorStatistics](ctx, c, []string{"stats", project}, "/visit-statistics/"+url.PathEscape(project), nil)
}

// FilterVisitors returns one page of visitors matching the filters.
func (c *Client) FilterVisitors(ctx context.Context, filters visitors.Filters) (visitors.PagedVisitors, error) {
	query := filterQuery(filters)
	return cachedGet[visitors.PagedVisitors](ctx, c, []string{"filter", query.Encode()}, "/filter-visit", query)
}

// ListVisitors returns every visitor record.
func (c *Client) ListVisitors(ctx context.Context) ([]visitors.Visitor, error) {
	return cachedGet[[]visitors.Visitor](ctx, c, []string{"list"}, "/visitors", nil)
}

// UpdateVisitor applies a partial update to a visitor.
func (c *Client) UpdateVisitor(ctx context.Context, id string, patch visitors.VisitorPatch) (visitors.Visitor, error) {
	var visitor visitors.Visitor
	if err := c.send(ctx, http.MethodPatch, "/visitors/"+url.PathEscape(id), patch, &visitor, true); err != nil {
		return visitors.Visitor{}, err
	}
	c.invalidate(ctx)
	return visitor, nil
}

// DeleteVisitor removes a visitor.
func (c *Client) DeleteVisitor(ctx context.Context, id string) error {
	if err := c.send(ctx, http.MethodDelete, "/visitors/"+url.PathEscape(id), nil, nil, true); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// VisitorByIP looks a visitor up by IP address.
func (c *Client) VisitorByIP(ctx context.Context, ip string) (visitors.Visitor, error) {
	return cachedGet[visitors.Visitor](ctx, c, []string{"ip", ip}, "/visitors/ip/"+url.PathEscape(ip), nil)
}

// VisitorsByDateRange lists visitors whose last visit falls in [start, end].
func (c *Client) VisitorsByDateRange(ctx context.Context, start, end string) ([]visitors.Visitor, error) {
	query := url.Values{"startDate": {start}, "endDate": {end}}
	return cachedGet[[]visitors.Visitor](ctx, c, []string{"range", start, end}, "/visitors/date-range", query)
}

// UniqueVisitorsDaily returns daily unique visitors; empty dates are left to the backend default.
func (c *Client) UniqueVisitorsDaily(ctx context.Context, project, start, end string) ([]visitors.DailyStat, error) {
	query := url.Values{}
	if start != "" {
		query.Set("startDate", start)
	}
	if end != "" {
		query.Set("endDate", end)
	}
	return cachedGet[[]visitors.DailyStat](ctx, c, []string{"unique-daily", project, start, end}, "/unique-visitors-daily/"+url.PathEscape(project), query)
}

// ActiveVisitors returns the raw active visitor payload. It is never cached.
func (c *Client) ActiveVisitors(ctx context.Context, windowMinutes int) (json.RawMessage, error) {
	query := url.Values{"minutes": {strconv.Itoa(windowMinutes)}}
	body, err := c.getRaw(ctx, "/active-visitors", query)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(body), nil
}

// BrowserOSStats returns the browser and operating system breakdowns.
func (c *Client) BrowserOSStats(ctx context.Context) (visitors.BrowserOSStats, error) {
	return cachedGet[visitors.BrowserOSStats](ctx, c, []string{"browser-os"}, "/browser-os-stats", nil)
}

// ExportVisitors returns the raw export body in the requested format.
func (c *Client) ExportVisitors(ctx context.Context, format visitors.ExportFormat) ([]byte, error) {
	return c.getRaw(ctx, "/export", url.Values{"format": {string(format)}})
}

// VisitorGrowth returns the visitor growth series.
func (c *Client) VisitorGrowth(ctx context.Context) ([]visitors.GrowthPoint, error) {
	return cachedGet[[]visitors.GrowthPoint](ctx, c, []string{"growth"}, "/visitor-growth", nil)
}

// DailyStats returns the daily unique visitors of a project over the last days.
func (c *Client) DailyStats(ctx context.Context, project string, days int) (visitors.DailyStatsResult, error) {
	query := url.Values{"days": {strconv.Itoa(days)}}
	return cachedGet[visitors.DailyStatsResult](ctx, c, []string{"daily", project, strconv.Itoa(days)}, "/daily-stats/"+url.PathEscape(project), query)
}

// cachedGet serves a GET from the response cache when one is configured.
// Cache faults degrade to a direct request.
func cachedGet[T any](ctx context.Context, c *Client, keyParts []string, path string, query url.Values) (T, error) {
	var value T
	body, err := c.cachedBody(ctx, keyParts, path, query)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(body, &value); err != nil {
		return value, fmt.Errorf("analytics api: decode %s: %w", path, err)
	}
	return value, nil
}

func (c *Client) cachedBody(ctx context.Context, keyParts []string, path string, query url.Values) ([]byte, error) {
	if c.cache == nil {
		return c.getRaw(ctx, path, query)
	}
	key, err := c.cache.Key(ctx, keyParts[0], keyParts[1:]...)
	if err != nil {
		c.log().Warn("analytics api cache key", slog.String("path", path), slog.Any("error", err))
		return c.getRaw(ctx, path, query)
	}
	body, hit, err := c.cache.Lookup(ctx, key)
	if err != nil {
		c.log().Warn("analytics api cache lookup", slog.String("key", key), slog.Any("error", err))
	}
	if hit && json.Valid(body) {
		return body, nil
	}
	body, err = c.getRaw(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return body, nil
	}
	if err := c.cache.Store(ctx, key, body); err != nil {
		c.log().Warn("analytics api cache store", slog.String("key", key), slog.Any("error", err))
	}
	return body, nil
}

func (c *Client) invalidate(ctx context.Context) {
	if err := c.cache.Bump(ctx); err != nil {
		c.log().Warn("analytics api cache bump", slog.Any("error", err))
	}
}

func (c *Client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json, text/csv")
		return req, nil
	}, true)
	if err := checkResponse(http.MethodGet, path, resp, err); err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("analytics api: read %s: %w", path, err)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload, dest interface{}, idempotent bool) error {
	var raw []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = encoded
	}
	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if raw != nil {
			body = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, idempotent)
	if err := checkResponse(method, path, resp, err); err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && err != io.EOF {
		return fmt.Errorf("analytics api: decode %s: %w", path, err)
	}
	return nil
}

// doRequest runs the request through the retry executor. Non-idempotent
// requests bypass it so a visit is never recorded twice.
func (c *Client) doRequest(ctx context.Context, build func(ctx context.Context) (*http.Request, error), idempotent bool) (*http.Response, error) {
	if c.executor == nil || !idempotent {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return execute(ctx, c.executor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

func checkResponse(method, path string, resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}
	if err != nil {
		return fmt.Errorf("analytics api: %s %s: %w", method, path, err)
	}
	if resp == nil {
		return fmt.Errorf("analytics api: %s %s: empty response", method, path)
	}
	return nil
}

func filterQuery(filters visitors.Filters) url.Values {
	query := url.Values{}
	set := func(key, value string) {
		if value != "" {
			query.Set(key, value)
		}
	}
	set("projectName", filters.ProjectName)
	set("location", filters.Location)
	set("startDate", filters.StartDate)
	set("endDate", filters.EndDate)
	set("browser", filters.Browser)
	set("device", filters.Device)
	if filters.Page > 0 {
		query.Set("page", strconv.Itoa(filters.Page))
	}
	if filters.Limit > 0 {
		query.Set("limit", strconv.Itoa(filters.Limit))
	}
	return query
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
