package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/odyssey-erp/visitor-insights/internal/dashboard/charts"
	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// stubClient serves canned responses and counts calls per fetch kind. A hook
// registered for a kind runs before the response and may block or fail.
type stubClient struct {
	mu      sync.Mutex
	calls   map[FetchKind]int
	hooks   map[FetchKind]func(call int) error
	filters []visitors.Filters
	periods []visitors.Period
	days    []int

	projects  []visitors.ProjectSummary
	counts    map[string]visitors.ProjectSummary
	trend     map[visitors.Period][]visitors.TrendPoint
	stats     visitors.VisitorStatistics
	locations []visitors.LocationSummary
	devices   []visitors.DeviceSummary
	page      visitors.PagedVisitors
	browserOS visitors.BrowserOSStats
	growth    []visitors.GrowthPoint
	daily     visitors.DailyStatsResult
	active    json.RawMessage
	export    map[visitors.ExportFormat][]byte
}

func newStubClient() *stubClient {
	return &stubClient{
		calls: map[FetchKind]int{},
		hooks: map[FetchKind]func(int) error{},
		projects: []visitors.ProjectSummary{
			{ProjectName: "blog", UniqueVisitors: 40},
			{ProjectName: "shop", UniqueVisitors: 12},
		},
		counts: map[string]visitors.ProjectSummary{
			"All":  {ProjectName: "All", UniqueVisitors: 52},
			"blog": {ProjectName: "blog", UniqueVisitors: 41},
			"shop": {ProjectName: "shop", UniqueVisitors: 13},
		},
		trend: map[visitors.Period][]visitors.TrendPoint{
			visitors.PeriodDaily:  {{BucketID: "2025-03-09", Count: 4}, {BucketID: "2025-03-10", Count: 7}},
			visitors.PeriodWeekly: {{BucketID: "2025-W10", Count: 30}},
		},
		stats: visitors.VisitorStatistics{MostUsedBrowser: "Chrome", MostUsedDevice: "Desktop", MostVisitedLocation: "Berlin"},
		locations: []visitors.LocationSummary{
			{Location: "Berlin", VisitorCount: 5},
			{Location: "", VisitorCount: 2},
			{Location: "Paris", VisitorCount: 3},
		},
		devices: []visitors.DeviceSummary{
			{Device: "Desktop", VisitorCount: 6},
			{Device: "Mobile", VisitorCount: 4},
		},
		page: visitors.PagedVisitors{
			Visitors:      []visitors.Visitor{{ID: "v1", ProjectName: "blog", IPAddress: "10.0.0.1"}},
			TotalVisitors: 25,
			TotalPages:    3,
			CurrentPage:   1,
		},
		browserOS: visitors.BrowserOSStats{
			BrowserStats: []visitors.TrendPoint{{BucketID: "Chrome", Count: 9}, {BucketID: "Firefox", Count: 3}},
			OSStats:      []visitors.TrendPoint{{BucketID: "Linux", Count: 5}},
		},
		growth: []visitors.GrowthPoint{{BucketID: "2025-02", Count: 20}, {BucketID: "2025-03", Count: 32}},
		daily: visitors.DailyStatsResult{
			DailyStats:    []visitors.DailyStat{{Date: "2025-03-09", UniqueVisitors: 3}, {Date: "2025-03-10", UniqueVisitors: 5}},
			TotalVisitors: 8,
			Period:        visitors.DailyStatsPeriod{StartDate: "2025-03-04", EndDate: "2025-03-10", Days: 7},
		},
		active: json.RawMessage(`{"activeVisitors":[{"_id":"a"},{"_id":"b"},{"_id":"c"}]}`),
		export: map[visitors.ExportFormat][]byte{
			visitors.ExportCSV:  []byte("projectName,ipAddress\nblog,10.0.0.1\n"),
			visitors.ExportJSON: []byte(`[{"projectName":"blog","ipAddress":"10.0.0.1"}]`),
		},
	}
}

func (s *stubClient) enter(kind FetchKind) error {
	s.mu.Lock()
	s.calls[kind]++
	call := s.calls[kind]
	hook := s.hooks[kind]
	s.mu.Unlock()
	if hook != nil {
		return hook(call)
	}
	return nil
}

func (s *stubClient) setHook(kind FetchKind, hook func(call int) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[kind] = hook
}

func (s *stubClient) callCounts() map[FetchKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[FetchKind]int, len(s.calls))
	for k, v := range s.calls {
		out[k] = v
	}
	return out
}

func (s *stubClient) resetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[FetchKind]int{}
	s.filters = nil
	s.periods = nil
	s.days = nil
}

func (s *stubClient) recordedFilters() []visitors.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]visitors.Filters(nil), s.filters...)
}

func (s *stubClient) TotalVisitorCounts(ctx context.Context) ([]visitors.ProjectSummary, error) {
	if err := s.enter(KindTotalVisitors); err != nil {
		return nil, err
	}
	return s.projects, nil
}

func (s *stubClient) VisitorCount(ctx context.Context, project string) (visitors.ProjectSummary, error) {
	if err := s.enter(KindVisitorCount); err != nil {
		return visitors.ProjectSummary{}, err
	}
	return s.counts[project], nil
}

func (s *stubClient) TrackVisit(ctx context.Context, project string) (visitors.Visitor, error) {
	return visitors.Visitor{ProjectName: project}, nil
}

func (s *stubClient) Locations(ctx context.Context) ([]visitors.LocationSummary, error) {
	if err := s.enter(KindLocations); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locations, nil
}

func (s *stubClient) Devices(ctx context.Context) ([]visitors.DeviceSummary, error) {
	if err := s.enter(KindDevices); err != nil {
		return nil, err
	}
	return s.devices, nil
}

func (s *stubClient) VisitorTrend(ctx context.Context, project string, period visitors.Period) ([]visitors.TrendPoint, error) {
	s.mu.Lock()
	s.periods = append(s.periods, period)
	s.mu.Unlock()
	if err := s.enter(KindTrend); err != nil {
		return nil, err
	}
	return s.trend[period], nil
}

func (s *stubClient) VisitorStatistics(ctx context.Context, project string) (visitors.VisitorStatistics, error) {
	if err := s.enter(KindStatistics); err != nil {
		return visitors.VisitorStatistics{}, err
	}
	return s.stats, nil
}

func (s *stubClient) FilterVisitors(ctx context.Context, filters visitors.Filters) (visitors.PagedVisitors, error) {
	s.mu.Lock()
	s.filters = append(s.filters, filters)
	s.mu.Unlock()
	if err := s.enter(KindFilteredVisitors); err != nil {
		return visitors.PagedVisitors{}, err
	}
	page := s.page
	page.CurrentPage = filters.Page
	return page, nil
}

func (s *stubClient) ListVisitors(ctx context.Context) ([]visitors.Visitor, error) {
	return s.page.Visitors, nil
}

func (s *stubClient) UpdateVisitor(ctx context.Context, id string, patch visitors.VisitorPatch) (visitors.Visitor, error) {
	return visitors.Visitor{ID: id}, nil
}

func (s *stubClient) DeleteVisitor(ctx context.Context, id string) error { return nil }

func (s *stubClient) VisitorByIP(ctx context.Context, ip string) (visitors.Visitor, error) {
	return visitors.Visitor{IPAddress: ip}, nil
}

func (s *stubClient) VisitorsByDateRange(ctx context.Context, start, end string) ([]visitors.Visitor, error) {
	return s.page.Visitors, nil
}

func (s *stubClient) UniqueVisitorsDaily(ctx context.Context, project, start, end string) ([]visitors.DailyStat, error) {
	return s.daily.DailyStats, nil
}

func (s *stubClient) ActiveVisitors(ctx context.Context, windowMinutes int) (json.RawMessage, error) {
	if err := s.enter(KindActiveVisitors); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, nil
}

func (s *stubClient) BrowserOSStats(ctx context.Context) (visitors.BrowserOSStats, error) {
	if err := s.enter(KindBrowserOS); err != nil {
		return visitors.BrowserOSStats{}, err
	}
	return s.browserOS, nil
}

func (s *stubClient) ExportVisitors(ctx context.Context, format visitors.ExportFormat) ([]byte, error) {
	if err := s.enter(KindExport); err != nil {
		return nil, err
	}
	return s.export[format], nil
}

func (s *stubClient) VisitorGrowth(ctx context.Context) ([]visitors.GrowthPoint, error) {
	if err := s.enter(KindGrowth); err != nil {
		return nil, err
	}
	return s.growth, nil
}

func (s *stubClient) DailyStats(ctx context.Context, project string, days int) (visitors.DailyStatsResult, error) {
	s.mu.Lock()
	s.days = append(s.days, days)
	s.mu.Unlock()
	if err := s.enter(KindDailyStats); err != nil {
		return visitors.DailyStatsResult{}, err
	}
	return s.daily, nil
}

// chartRecorder is a ChartSink keeping the last data per chart.
type chartRecorder struct {
	mu      sync.Mutex
	data    map[charts.ChartID]charts.Data
	updates int
	closed  bool
}

func newChartRecorder() *chartRecorder {
	return &chartRecorder{data: map[charts.ChartID]charts.Data{}}
}

func (r *chartRecorder) Update(id charts.ChartID, data charts.Data) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[id] = data
	r.updates++
	return nil
}

func (r *chartRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *chartRecorder) get(id charts.ChartID) (charts.Data, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.data[id]
	return d, ok
}

var fixedNow = time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDashboard(t *testing.T, client visitors.Client, opts ...Option) *Dashboard {
	t.Helper()
	base := []Option{
		WithNow(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
		WithLogger(quietLogger()),
		WithActivePolling(time.Hour, 5),
	}
	d := New(client, append(base, opts...)...)
	t.Cleanup(func() { _ = d.Close() })
	// Select All as the catalog load would.
	d.mu.Lock()
	d.state.Filters.ProjectName = visitors.AllOption
	d.mu.Unlock()
	return d
}

// gate blocks the first call of a kind until released.
func gate(client *stubClient, kind FetchKind) (release func()) {
	ch := make(chan struct{})
	var once sync.Once
	client.setHook(kind, func(call int) error {
		if call == 1 {
			<-ch
		}
		return nil
	})
	return func() { once.Do(func() { close(ch) }) }
}
