package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

func newBackend(t *testing.T, mount func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func noRetry() Option {
	return WithExecutorConfig(ExecutorConfig{MaxRetries: 0, CircuitBreaker: false})
}

func TestFilterVisitorsSendsQuery(t *testing.T) {
	var got atomic.Value
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/filter-visit", func(w http.ResponseWriter, r *http.Request) {
			got.Store(r.URL.Query())
			writeJSON(w, visitors.PagedVisitors{
				Visitors:      []visitors.Visitor{{ID: "v1", ProjectName: "blog", IPAddress: "10.0.0.1"}},
				TotalVisitors: 25,
				TotalPages:    3,
				CurrentPage:   2,
			})
		})
	})

	client := New(srv.URL, noRetry())
	page, err := client.FilterVisitors(context.Background(), visitors.Filters{
		ProjectName: "blog",
		Location:    "All",
		StartDate:   "2025-01-01",
		EndDate:     "2025-01-31",
		Page:        2,
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, page.TotalVisitors)
	require.Len(t, page.Visitors, 1)
	assert.Equal(t, "v1", page.Visitors[0].ID)

	query := got.Load().(url.Values)
	assert.Equal(t, []string{"blog"}, query["projectName"])
	assert.Equal(t, []string{"2"}, query["page"])
	assert.Equal(t, []string{"10"}, query["limit"])
	assert.NotContains(t, query, "browser")
}

func TestVisitorTrendEscapesProject(t *testing.T) {
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/visit-trend/{project}", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "my site", chi.URLParam(r, "project"))
			assert.Equal(t, "weekly", r.URL.Query().Get("period"))
			writeJSON(w, []visitors.TrendPoint{{BucketID: "2025-W01", Count: 4}})
		})
	})

	client := New(srv.URL, noRetry())
	points, err := client.VisitorTrend(context.Background(), "my site", visitors.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, []visitors.TrendPoint{{BucketID: "2025-W01", Count: 4}}, points)
}

func TestStatusErrorOnNotFound(t *testing.T) {
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/visit-statistics/{project}", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	})

	client := New(srv.URL, noRetry())
	_, err := client.VisitorStatistics(context.Background(), "ghost")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected StatusError, got %v", err)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/locations", func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, []visitors.LocationSummary{{Location: "Berlin", VisitorCount: 3}})
		})
	})

	client := New(srv.URL, WithExecutorConfig(ExecutorConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}))
	locations, err := client.Locations(context.Background())
	require.NoError(t, err)
	assert.Len(t, locations, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTrackVisitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newBackend(t, func(r chi.Router) {
		r.Post("/visit/{project}", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		})
	})

	client := New(srv.URL, WithExecutorConfig(ExecutorConfig{MaxRetries: 3, BaseDelay: time.Millisecond}))
	_, err := client.TrackVisit(context.Background(), "blog")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestActiveVisitorsReturnsRawPayload(t *testing.T) {
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/active-visitors", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "5", r.URL.Query().Get("minutes"))
			_, _ = w.Write([]byte(`{"activeVisitors":[{"_id":"a"},{"_id":"b"}]}`))
		})
	})

	client := New(srv.URL, noRetry())
	raw, err := client.ActiveVisitors(context.Background(), 5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"activeVisitors":[{"_id":"a"},{"_id":"b"}]}`, string(raw))
}

func TestExportReturnsBody(t *testing.T) {
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/export", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("projectName,ipAddress\nblog,10.0.0.1\n"))
		})
	})

	client := New(srv.URL, noRetry())
	body, err := client.ExportVisitors(context.Background(), visitors.ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "projectName,ipAddress\nblog,10.0.0.1\n", string(body))
}

func TestCachedReadsAndInvalidation(t *testing.T) {
	var reads atomic.Int32
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/total-visits", func(w http.ResponseWriter, r *http.Request) {
			n := int(reads.Add(1))
			writeJSON(w, []visitors.ProjectSummary{{ProjectName: "blog", UniqueVisitors: 10 * n}})
		})
		r.Delete("/visitors/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := New(srv.URL, noRetry(), WithCache(NewCache(rdb, time.Minute)))
	ctx := context.Background()

	first, err := client.TotalVisitorCounts(ctx)
	require.NoError(t, err)
	second, err := client.TotalVisitorCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), reads.Load())

	require.NoError(t, client.DeleteVisitor(ctx, "v1"))

	third, err := client.TotalVisitorCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, third[0].UniqueVisitors)
	assert.Equal(t, int32(2), reads.Load())
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute), mr
}

func TestCacheKeysFollowGeneration(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)

	key, err := cache.Key(ctx, "trend", "blog", "daily")
	require.NoError(t, err)
	assert.Equal(t, "visitors:api:v1:trend:blog:daily", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.Key(ctx, "trend", "blog", "daily")
	require.NoError(t, err)
	assert.Equal(t, "visitors:api:v2:trend:blog:daily", key)
}

func TestCacheKeySegmentsAreEscaped(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	joined, err := cache.Key(ctx, "unique-daily", "blog:2025-03-01", "2025-03-10")
	require.NoError(t, err)
	split, err := cache.Key(ctx, "unique-daily", "blog", "2025-03-01:2025-03-10")
	require.NoError(t, err)
	assert.NotEqual(t, joined, split)
	assert.Equal(t, "visitors:api:v1:unique-daily:blog%3A2025-03-01:2025-03-10", joined)
}

func TestCacheStoresWithTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	_, hit, err := cache.Lookup(ctx, "visitors:api:v1:growth")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Store(ctx, "visitors:api:v1:growth", []byte(`[]`)))
	body, hit, err := cache.Lookup(ctx, "visitors:api:v1:growth")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "[]", string(body))
	assert.Equal(t, time.Minute, mr.TTL("visitors:api:v1:growth"))
}

func TestCacheInvalidationOnlyMovesForward(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, cache.ListenForInvalidation(ctx, "", nil))
	mr.Publish(invalidateChannel, "5")
	require.Eventually(t, func() bool {
		ver, err := cache.Version(ctx)
		return err == nil && ver == 5
	}, time.Second, 10*time.Millisecond)

	mr.Publish(invalidateChannel, "3")
	mr.Publish(invalidateChannel, "not-a-version")
	mr.Publish(invalidateChannel, "6")
	require.Eventually(t, func() bool {
		ver, err := cache.Version(ctx)
		return err == nil && ver == 6
	}, time.Second, 10*time.Millisecond)
}

func TestCacheFaultFallsBackToAPI(t *testing.T) {
	var reads atomic.Int32
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/visitor-growth", func(w http.ResponseWriter, r *http.Request) {
			reads.Add(1)
			writeJSON(w, []visitors.GrowthPoint{{BucketID: "2025-03", Count: 9}})
		})
	})
	cache, mr := newTestCache(t)
	mr.Close()

	client := New(srv.URL, noRetry(), WithCache(cache))
	growth, err := client.VisitorGrowth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, growth[0].Count)
	assert.Equal(t, int32(1), reads.Load())
}

func TestNilCacheIsInert(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	_, hit, err := cache.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, cache.Store(ctx, "k", []byte("1")))
	assert.NoError(t, cache.Bump(ctx))
	assert.NoError(t, cache.ListenForInvalidation(ctx, "", nil))
}
