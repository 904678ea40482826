package visitors

import (
	"context"
	"encoding/json"
)

// Client is the analytics backend contract consumed by the dashboard.
type Client interface {
	TotalVisitorCounts(ctx context.Context) ([]ProjectSummary, error)
	VisitorCount(ctx context.Context, project string) (ProjectSummary, error)
	TrackVisit(ctx context.Context, project string) (Visitor, error)
	Locations(ctx context.Context) ([]LocationSummary, error)
	Devices(ctx context.Context) ([]DeviceSummary, error)
	VisitorTrend(ctx context.Context, project string, period Period) ([]TrendPoint, error)
	VisitorStatistics(ctx context.Context, project string) (VisitorStatistics, error)
	FilterVisitors(ctx context.Context, filters Filters) (PagedVisitors, error)
	ListVisitors(ctx context.Context) ([]Visitor, error)
	UpdateVisitor(ctx context.Context, id string, patch VisitorPatch) (Visitor, error)
	DeleteVisitor(ctx context.Context, id string) error
	VisitorByIP(ctx context.Context, ip string) (Visitor, error)
	VisitorsByDateRange(ctx context.Context, start, end string) ([]Visitor, error)
	UniqueVisitorsDaily(ctx context.Context, project, start, end string) ([]DailyStat, error)
	// ActiveVisitors returns the raw payload; its shape is not fixed by the backend.
	ActiveVisitors(ctx context.Context, windowMinutes int) (json.RawMessage, error)
	BrowserOSStats(ctx context.Context) (BrowserOSStats, error)
	ExportVisitors(ctx context.Context, format ExportFormat) ([]byte, error)
	VisitorGrowth(ctx context.Context) ([]GrowthPoint, error)
	DailyStats(ctx context.Context, project string, days int) (DailyStatsResult, error)
}
