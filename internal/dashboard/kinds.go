// Package dashboard holds the visitor dashboard controller: filter state,
// the fetch cascade against the analytics backend, derived metrics,
// pagination, the active visitor poller and exports.
package dashboard

import (
	"errors"
	"strings"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// FetchKind names one independently tracked query.
type FetchKind string

// Fetch kinds.
const (
	KindTotalVisitors    FetchKind = "total-visitors"
	KindVisitorCount     FetchKind = "visitor-count"
	KindLocations        FetchKind = "locations"
	KindDevices          FetchKind = "devices"
	KindTrend            FetchKind = "trend"
	KindStatistics       FetchKind = "statistics"
	KindFilteredVisitors FetchKind = "filtered-visitors"
	KindBrowserOS        FetchKind = "browser-os"
	KindGrowth           FetchKind = "growth"
	KindDailyStats       FetchKind = "daily-stats"
	KindActiveVisitors   FetchKind = "active-visitors"
	KindExport           FetchKind = "export"
)

// AllKinds lists every fetch kind.
var AllKinds = []FetchKind{
	KindTotalVisitors,
	KindVisitorCount,
	KindLocations,
	KindDevices,
	KindTrend,
	KindStatistics,
	KindFilteredVisitors,
	KindBrowserOS,
	KindGrowth,
	KindDailyStats,
	KindActiveVisitors,
	KindExport,
}

var failureMessages = map[FetchKind]string{
	KindTotalVisitors:    "Failed to load visitor counts",
	KindVisitorCount:     "Failed to load visitor count",
	KindLocations:        "Failed to load visitor locations",
	KindDevices:          "Failed to load visitor devices",
	KindTrend:            "Failed to load visitor trend",
	KindStatistics:       "Failed to load visitor statistics",
	KindFilteredVisitors: "Failed to load filtered visitors",
	KindBrowserOS:        "Failed to load browser/OS statistics",
	KindGrowth:           "Failed to load visitor growth data",
	KindDailyStats:       "Failed to load daily statistics",
	KindActiveVisitors:   "Failed to load active visitors",
	KindExport:           "Failed to export data",
}

// FailureMessage returns the human readable failure description of a kind.
func (k FetchKind) FailureMessage() string {
	if msg, ok := failureMessages[k]; ok {
		return msg
	}
	return "Failed to load " + string(k)
}

// ExportFailureMessage names the format that failed to export.
func ExportFailureMessage(format visitors.ExportFormat) string {
	return "Failed to export data as " + strings.ToUpper(string(format))
}

// ParseFetchKind validates a textual fetch kind.
func ParseFetchKind(value string) (FetchKind, error) {
	k := FetchKind(value)
	if _, ok := failureMessages[k]; !ok {
		return "", ErrUnknownKind
	}
	return k, nil
}

// Sentinel errors.
var (
	ErrInvalidFilters   = errors.New("dashboard: invalid filters")
	ErrUnknownDateRange = errors.New("dashboard: unknown date range")
	ErrUnknownKind      = errors.New("dashboard: unknown fetch kind")
	ErrClosed           = errors.New("dashboard: closed")
)
