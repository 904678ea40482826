package dashboard

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// Status is the lifecycle stage of one fetch kind.
type Status string

// Fetch statuses.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// SlotState is the externally visible state of a fetch kind.
type SlotState struct {
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// State is an immutable snapshot of the dashboard. Slices are replaced
// wholesale on every update and must not be modified by readers.
type State struct {
	Filters        visitors.Filters
	Period         visitors.Period
	Days           int
	Projects       []visitors.ProjectSummary
	Locations      []string
	Devices        []string
	Statistics     *visitors.VisitorStatistics
	Trend          []visitors.TrendPoint
	Visitors       visitors.PagedVisitors
	BrowserOS      visitors.BrowserOSStats
	Growth         []visitors.GrowthPoint
	DailyStats     visitors.DailyStatsResult
	ActiveVisitors int
	Slots          map[FetchKind]SlotState
}

// SelectedProject is the project the cascade is scoped to.
func (s State) SelectedProject() string {
	return s.Filters.ProjectName
}

// TotalVisitors returns the unique visitors of the selected project, or zero
// when it is not in the catalog.
func (s State) TotalVisitors() int {
	for _, p := range s.Projects {
		if p.ProjectName == s.Filters.ProjectName {
			return p.UniqueVisitors
		}
	}
	return 0
}

// MostUsedBrowser reads the latest statistics snapshot.
func (s State) MostUsedBrowser() string {
	if s.Statistics == nil {
		return ""
	}
	return s.Statistics.MostUsedBrowser
}

// MostUsedDevice reads the latest statistics snapshot.
func (s State) MostUsedDevice() string {
	if s.Statistics == nil {
		return ""
	}
	return s.Statistics.MostUsedDevice
}

// MostVisitedLocation reads the latest statistics snapshot.
func (s State) MostVisitedLocation() string {
	if s.Statistics == nil {
		return ""
	}
	return s.Statistics.MostVisitedLocation
}

// HasValidDateRange is true when both dates are set.
func (s State) HasValidDateRange() bool {
	return s.Filters.HasValidDateRange()
}

// TotalPages is derived from the filtered list total and the page limit.
func (s State) TotalPages() int {
	return TotalPages(s.Visitors.TotalVisitors, s.Filters.Limit)
}

// HasNextPage reports whether NextPage leads to a non-empty page.
func (s State) HasNextPage() bool {
	return HasNextPage(s.Filters.Page, s.Filters.Limit, s.Visitors.TotalVisitors)
}

// HasPreviousPage is false only on the first page.
func (s State) HasPreviousPage() bool {
	return HasPreviousPage(s.Filters.Page)
}

// Loading is true while any fetch is in flight.
func (s State) Loading() bool {
	for _, slot := range s.Slots {
		if slot.Status == StatusLoading {
			return true
		}
	}
	return false
}

// Errors returns the failure messages currently set, keyed by kind.
func (s State) Errors() map[FetchKind]string {
	out := make(map[FetchKind]string)
	for kind, slot := range s.Slots {
		if slot.Error != "" {
			out[kind] = slot.Error
		}
	}
	return out
}

// FormatCount renders a count with thousands separators.
func FormatCount(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
