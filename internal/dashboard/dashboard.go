package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/visitor-insights/internal/dashboard/charts"
	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// ChartSink receives chart series whenever chart-backed data changes.
type ChartSink interface {
	Update(id charts.ChartID, data charts.Data) error
	Close() error
}

// FetchObserver records fetch outcomes, typically as metrics.
type FetchObserver interface {
	ObserveFetch(kind string, err error, elapsed time.Duration)
}

// Defaults applied by New.
const (
	DefaultPageLimit    = 10
	DefaultDays         = 7
	DefaultActiveWindow = 5
	DefaultPollInterval = time.Minute
	DefaultFetchTimeout = 30 * time.Second
	defaultPeriod       = visitors.PeriodDaily
)

// Dashboard owns the filter state and the result snapshots. All mutations
// happen under mu by whole-value replacement, so State returns a consistent
// snapshot at any time.
type Dashboard struct {
	client       visitors.Client
	charts       ChartSink
	observer     FetchObserver
	logger       *slog.Logger
	now          func() time.Time
	loc          *time.Location
	fetchTimeout time.Duration
	activeWindow int
	pollInterval time.Duration
	pageLimit    int
	onActive     func(count int, err error)

	mu     sync.Mutex
	state  State
	slots  map[FetchKind]*slot
	closed bool
	poller *Poller
}

// Option customises a Dashboard.
type Option func(*Dashboard)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(d *Dashboard) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLocation sets the viewer's timezone used for calendar days.
func WithLocation(loc *time.Location) Option {
	return func(d *Dashboard) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dashboard) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithCharts connects the chart manager.
func WithCharts(sink ChartSink) Option {
	return func(d *Dashboard) { d.charts = sink }
}

// WithObserver records fetch outcomes.
func WithObserver(observer FetchObserver) Option {
	return func(d *Dashboard) { d.observer = observer }
}

// WithPageLimit sets the initial page size.
func WithPageLimit(limit int) Option {
	return func(d *Dashboard) {
		if limit > 0 {
			d.pageLimit = limit
		}
	}
}

// WithDays sets the initial daily stats window.
func WithDays(days int) Option {
	return func(d *Dashboard) {
		if days > 0 {
			d.state.Days = days
		}
	}
}

// WithActivePolling configures the active visitor poller.
func WithActivePolling(interval time.Duration, windowMinutes int) Option {
	return func(d *Dashboard) {
		if interval > 0 {
			d.pollInterval = interval
		}
		if windowMinutes > 0 {
			d.activeWindow = windowMinutes
		}
	}
}

// WithActiveCallback is invoked after every active visitor poll.
func WithActiveCallback(fn func(count int, err error)) Option {
	return func(d *Dashboard) { d.onActive = fn }
}

// WithFetchTimeout bounds every individual fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(d *Dashboard) {
		if timeout > 0 {
			d.fetchTimeout = timeout
		}
	}
}

// New builds a Dashboard over the analytics client.
func New(client visitors.Client, opts ...Option) *Dashboard {
	d := &Dashboard{
		client:       client,
		logger:       slog.Default(),
		now:          time.Now,
		loc:          time.Local,
		fetchTimeout: DefaultFetchTimeout,
		activeWindow: DefaultActiveWindow,
		pollInterval: DefaultPollInterval,
		pageLimit:    DefaultPageLimit,
		state: State{
			Period:    defaultPeriod,
			Days:      DefaultDays,
			Projects:  []visitors.ProjectSummary{},
			Locations: []string{visitors.AllOption},
			Devices:   []string{visitors.AllOption},
		},
		slots: make(map[FetchKind]*slot, len(AllKinds)),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, kind := range AllKinds {
		d.slots[kind] = &slot{status: StatusIdle}
	}
	d.state.Filters = DefaultFilters(d.now(), d.loc, d.pageLimit)
	d.poller = NewPoller(d, d.pollInterval, d.logger)
	return d
}

// Start begins the active visitor poller and the initial load: the project
// catalog, then the full cascade for "All".
func (d *Dashboard) Start(ctx context.Context) *Cascade {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return newCascade()
	}
	d.poller.Start(ctx)
	c, _ := d.mutate("start", func() ([]job, error) {
		return []job{d.totalVisitorsJob()}, nil
	})
	return c
}

// Close stops polling and destroys the charts. Fetches still in flight are
// left to finish and their results are ignored.
func (d *Dashboard) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.poller.Stop()
	if d.charts != nil {
		return d.charts.Close()
	}
	return nil
}

// State returns the current snapshot.
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.state
	st.Slots = make(map[FetchKind]SlotState, len(d.slots))
	for kind, s := range d.slots {
		st.Slots[kind] = SlotState{Status: s.status, Error: s.err, UpdatedAt: s.updatedAt}
	}
	return st
}

// Now returns the dashboard clock's current time in the viewer's timezone.
func (d *Dashboard) Now() time.Time {
	return d.now().In(d.loc)
}

// Location returns the viewer's timezone.
func (d *Dashboard) Location() *time.Location {
	return d.loc
}

// UpdateFilters merges patch into the filters. A changed project re-runs the
// full cascade; anything else reloads the filtered list when the date range
// is complete.
func (d *Dashboard) UpdateFilters(patch FilterPatch) (*Cascade, error) {
	return d.mutate("filters", func() ([]job, error) {
		if patch.ProjectName != nil && *patch.ProjectName == "" {
			return nil, fmt.Errorf("%w: project name is required", ErrInvalidFilters)
		}
		next := patch.Apply(d.state.Filters)
		if err := ValidateFilters(next); err != nil {
			return nil, err
		}
		projectChanged := next.ProjectName != d.state.Filters.ProjectName
		d.state.Filters = next
		if projectChanged {
			return d.projectCascadeLocked(), nil
		}
		return d.filteredJobsLocked(), nil
	})
}

// SetProject selects a project and re-runs the full cascade.
func (d *Dashboard) SetProject(name string) (*Cascade, error) {
	if name == "" {
		return newCascade(), fmt.Errorf("%w: project name is required", ErrInvalidFilters)
	}
	return d.mutate("project", func() ([]job, error) {
		d.state.Filters = FilterPatch{ProjectName: strPtr(name)}.Apply(d.state.Filters)
		return d.projectCascadeLocked(), nil
	})
}

// SetPeriod changes the trend bucket and re-runs the full cascade.
func (d *Dashboard) SetPeriod(period visitors.Period) (*Cascade, error) {
	if _, err := visitors.ParsePeriod(string(period)); err != nil {
		return newCascade(), err
	}
	return d.mutate("period", func() ([]job, error) {
		d.state.Period = period
		return d.projectCascadeLocked(), nil
	})
}

// SetLocation changes the location filter and reloads the filtered list.
func (d *Dashboard) SetLocation(location string) *Cascade {
	c, _ := d.mutate("location", func() ([]job, error) {
		d.state.Filters = FilterPatch{Location: strPtr(location)}.Apply(d.state.Filters)
		return d.filteredJobsLocked(), nil
	})
	return c
}

// SetDevice changes the device filter and reloads the filtered list.
func (d *Dashboard) SetDevice(device string) *Cascade {
	c, _ := d.mutate("device", func() ([]job, error) {
		d.state.Filters = FilterPatch{Device: strPtr(device)}.Apply(d.state.Filters)
		return d.filteredJobsLocked(), nil
	})
	return c
}

// NextPage advances one page and reloads the filtered list.
func (d *Dashboard) NextPage() *Cascade {
	c, _ := d.mutate("next-page", func() ([]job, error) {
		d.state.Filters = FilterPatch{Page: intPtr(d.state.Filters.Page + 1)}.Apply(d.state.Filters)
		return d.filteredJobsLocked(), nil
	})
	return c
}

// PreviousPage goes back one page. On the first page it does nothing.
func (d *Dashboard) PreviousPage() *Cascade {
	c, _ := d.mutate("previous-page", func() ([]job, error) {
		if d.state.Filters.Page <= 1 {
			return nil, nil
		}
		d.state.Filters = FilterPatch{Page: intPtr(d.state.Filters.Page - 1)}.Apply(d.state.Filters)
		return d.filteredJobsLocked(), nil
	})
	return c
}

// SetDateRange applies a date shortcut computed in the viewer's timezone.
func (d *Dashboard) SetDateRange(r DateRange) (*Cascade, error) {
	start, end, err := ResolveDateRange(r, d.now(), d.loc)
	if err != nil {
		return newCascade(), err
	}
	return d.UpdateFilters(FilterPatch{StartDate: &start, EndDate: &end})
}

// SetDays changes the daily stats window and reloads only daily stats.
func (d *Dashboard) SetDays(days int) (*Cascade, error) {
	if days < 1 {
		return newCascade(), fmt.Errorf("%w: days must be positive", ErrInvalidFilters)
	}
	return d.mutate("days", func() ([]job, error) {
		d.state.Days = days
		if d.state.Filters.ProjectName == "" {
			return nil, nil
		}
		return []job{d.dailyStatsJob()}, nil
	})
}

// Refresh re-runs the full cascade for the selected project.
func (d *Dashboard) Refresh() *Cascade {
	c, _ := d.mutate("refresh", func() ([]job, error) {
		return d.projectCascadeLocked(), nil
	})
	return c
}

// RefreshActiveVisitors fetches the active visitor count synchronously.
func (d *Dashboard) RefreshActiveVisitors(ctx context.Context) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, ErrClosed
	}
	tickets := d.issueLocked([]job{d.activeVisitorsJob()})
	d.mu.Unlock()

	t := tickets[0]
	apply, err := d.execute(ctx, t.job)
	d.complete(t, apply, err)

	d.mu.Lock()
	count := d.state.ActiveVisitors
	d.mu.Unlock()
	if d.onActive != nil {
		d.onActive(count, err)
	}
	return count, err
}

// mutate applies fn under the lock and launches the jobs it returns.
func (d *Dashboard) mutate(action string, fn func() ([]job, error)) (*Cascade, error) {
	c := newCascade()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return c, ErrClosed
	}
	jobs, err := fn()
	if err != nil {
		d.mu.Unlock()
		return c, err
	}
	tickets := d.issueLocked(jobs)
	d.mu.Unlock()

	for _, t := range tickets {
		c.kinds = append(c.kinds, t.job.kind)
	}
	if len(tickets) > 0 {
		d.logger.Debug("cascade issued",
			slog.String("cascade", c.ID()),
			slog.String("action", action),
			slog.Any("kinds", c.kinds))
	}
	for _, t := range tickets {
		d.run(c, t)
	}
	return c, nil
}
