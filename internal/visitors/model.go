// Package visitors defines the visitor-analytics domain types exchanged with
// the analytics backend and the client contract used to query it.
package visitors

import (
	"fmt"
	"time"
)

// AllOption is the synthetic entry prepended to projects, locations and devices.
const AllOption = "All"

// DateLayout is the calendar-day layout used for every date sent to the backend.
const DateLayout = "2006-01-02"

// Period selects the bucket size of a visitor trend.
type Period string

// Supported trend periods.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a textual trend period.
func ParsePeriod(value string) (Period, error) {
	switch p := Period(value); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("visitors: unknown period %q", value)
	}
}

// ExportFormat selects the export artifact format.
type ExportFormat string

// Supported export formats.
const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ParseExportFormat validates a textual export format.
func ParseExportFormat(value string) (ExportFormat, error) {
	switch f := ExportFormat(value); f {
	case ExportJSON, ExportCSV:
		return f, nil
	default:
		return "", fmt.Errorf("visitors: unknown export format %q", value)
	}
}

// ProjectSummary carries the unique visitor count of a tracked project.
type ProjectSummary struct {
	ProjectName    string `json:"projectName"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}

// LocationSummary counts visitors per location.
type LocationSummary struct {
	Location     string `json:"location,omitempty"`
	VisitorCount int    `json:"visitorCount"`
}

// DeviceSummary counts visitors per device.
type DeviceSummary struct {
	Device       string `json:"device,omitempty"`
	VisitorCount int    `json:"visitorCount"`
}

// VisitorStatistics is the per-project "most used" snapshot.
type VisitorStatistics struct {
	MostUsedBrowser     string `json:"mostUsedBrowser"`
	MostUsedDevice      string `json:"mostUsedDevice"`
	MostVisitedLocation string `json:"mostVisitedLocation"`
}

// TrendPoint is one bucket of a visitor trend, in backend order.
type TrendPoint struct {
	BucketID string `json:"_id"`
	Count    int    `json:"count"`
}

// GrowthPoint is one bucket of the visitor growth series.
type GrowthPoint = TrendPoint

// BrowserOSStats groups the browser and operating system breakdowns.
type BrowserOSStats struct {
	BrowserStats []TrendPoint `json:"browserStats"`
	OSStats      []TrendPoint `json:"osStats"`
}

// Visitor is a single tracked visitor record.
type Visitor struct {
	ID          string     `json:"_id,omitempty"`
	ProjectName string     `json:"projectName"`
	IPAddress   string     `json:"ipAddress"`
	UserAgent   string     `json:"userAgent,omitempty"`
	Browser     string     `json:"browser,omitempty"`
	Device      string     `json:"device,omitempty"`
	Location    string     `json:"location,omitempty"`
	LastVisit   *time.Time `json:"lastVisit,omitempty"`
}

// VisitorPatch holds the fields of a partial visitor update.
type VisitorPatch struct {
	ProjectName *string `json:"projectName,omitempty"`
	Browser     *string `json:"browser,omitempty"`
	Device      *string `json:"device,omitempty"`
	Location    *string `json:"location,omitempty"`
	UserAgent   *string `json:"userAgent,omitempty"`
}

// PagedVisitors is one page of the filtered visitor list.
type PagedVisitors struct {
	Visitors      []Visitor `json:"visitors"`
	TotalVisitors int       `json:"totalVisitors"`
	TotalPages    int       `json:"totalPages"`
	CurrentPage   int       `json:"currentPage"`
}

// DailyStat is the unique visitor count of one calendar day.
type DailyStat struct {
	Date           string `json:"date"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}

// DailyStatsPeriod describes the window a daily stats result covers.
type DailyStatsPeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Days      int    `json:"days"`
}

// DailyStatsResult is the daily unique visitor series of a project.
type DailyStatsResult struct {
	DailyStats    []DailyStat      `json:"dailyStats"`
	TotalVisitors int              `json:"totalVisitors"`
	Period        DailyStatsPeriod `json:"period"`
}

// Filters is the query record behind the filtered visitor list.
type Filters struct {
	ProjectName string `json:"projectName"`
	Location    string `json:"location"`
	Browser     string `json:"browser"`
	Device      string `json:"device"`
	StartDate   string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Page        int    `json:"page" validate:"min=1"`
	Limit       int    `json:"limit" validate:"min=1"`
}

// HasValidDateRange reports whether both dates are present.
func (f Filters) HasValidDateRange() bool {
	return f.StartDate != "" && f.EndDate != ""
}
