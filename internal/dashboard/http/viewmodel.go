package dashboardhttp

import (
	"github.com/odyssey-erp/visitor-insights/internal/dashboard"
	"github.com/odyssey-erp/visitor-insights/internal/dashboard/charts"
	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// ViewModel is the JSON document behind GET /dashboard.
type ViewModel struct {
	Filters           visitors.Filters                            `json:"filters"`
	Period            visitors.Period                             `json:"period"`
	Days              int                                         `json:"days"`
	HasValidDateRange bool                                        `json:"hasValidDateRange"`
	Projects          []visitors.ProjectSummary                   `json:"projects"`
	Locations         []string                                    `json:"locations"`
	Devices           []string                                    `json:"devices"`
	Metrics           MetricsView                                 `json:"metrics"`
	Visitors          []visitors.Visitor                          `json:"visitors"`
	Pagination        PaginationView                              `json:"pagination"`
	Trend             []visitors.TrendPoint                       `json:"trend"`
	BrowserOS         visitors.BrowserOSStats                     `json:"browserOS"`
	Growth            []visitors.GrowthPoint                      `json:"growth"`
	DailyStats        visitors.DailyStatsResult                   `json:"dailyStats"`
	Status            map[dashboard.FetchKind]dashboard.SlotState `json:"status"`
	Errors            map[dashboard.FetchKind]string              `json:"errors"`
	Loading           bool                                        `json:"loading"`
	Theme             charts.Theme                                `json:"theme"`
	Charts            map[charts.ChartID]string                   `json:"charts"`
}

// MetricsView carries the headline numbers, raw and formatted.
type MetricsView struct {
	TotalVisitors          int    `json:"totalVisitors"`
	TotalVisitorsFormatted string `json:"totalVisitorsFormatted"`
	ActiveVisitors         int    `json:"activeVisitors"`
	MostUsedBrowser        string `json:"mostUsedBrowser"`
	MostUsedDevice         string `json:"mostUsedDevice"`
	MostVisitedLocation    string `json:"mostVisitedLocation"`
}

// PaginationView describes the filtered visitor list position.
type PaginationView struct {
	Page          int  `json:"page"`
	Limit         int  `json:"limit"`
	TotalVisitors int  `json:"totalVisitors"`
	TotalPages    int  `json:"totalPages"`
	HasNext       bool `json:"hasNext"`
	HasPrevious   bool `json:"hasPrevious"`
}

// CascadeView acknowledges an action whose fetches run in the background.
type CascadeView struct {
	Cascade string                `json:"cascade"`
	Kinds   []dashboard.FetchKind `json:"kinds"`
}

func buildViewModel(st dashboard.State, theme charts.Theme) ViewModel {
	total := st.TotalVisitors()
	vm := ViewModel{
		Filters:           st.Filters,
		Period:            st.Period,
		Days:              st.Days,
		HasValidDateRange: st.HasValidDateRange(),
		Projects:          nonNil(st.Projects),
		Locations:         nonNil(st.Locations),
		Devices:           nonNil(st.Devices),
		Metrics: MetricsView{
			TotalVisitors:          total,
			TotalVisitorsFormatted: dashboard.FormatCount(total),
			ActiveVisitors:         st.ActiveVisitors,
			MostUsedBrowser:        st.MostUsedBrowser(),
			MostUsedDevice:         st.MostUsedDevice(),
			MostVisitedLocation:    st.MostVisitedLocation(),
		},
		Visitors: nonNil(st.Visitors.Visitors),
		Pagination: PaginationView{
			Page:          st.Filters.Page,
			Limit:         st.Filters.Limit,
			TotalVisitors: st.Visitors.TotalVisitors,
			TotalPages:    st.TotalPages(),
			HasNext:       st.HasNextPage(),
			HasPrevious:   st.HasPreviousPage(),
		},
		Trend:      nonNil(st.Trend),
		BrowserOS:  st.BrowserOS,
		Growth:     nonNil(st.Growth),
		DailyStats: st.DailyStats,
		Status:     st.Slots,
		Errors:     st.Errors(),
		Loading:    st.Loading(),
		Theme:      theme,
		Charts:     make(map[charts.ChartID]string, len(charts.AllCharts)),
	}
	for _, id := range charts.AllCharts {
		vm.Charts[id] = "/dashboard/charts/" + id.Anchor() + ".svg"
	}
	return vm
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
