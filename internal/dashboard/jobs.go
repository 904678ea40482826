package dashboard

import (
	"context"
	"log/slog"
	"slices"

	"github.com/odyssey-erp/visitor-insights/internal/dashboard/charts"
	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

// projectCascadeLocked builds the full cascade for the selected project. It
// is empty until a project is selected.
func (d *Dashboard) projectCascadeLocked() []job {
	if d.state.Filters.ProjectName == "" {
		d.logger.Debug("project cascade deferred until a project is selected")
		return nil
	}
	jobs := []job{
		d.trendJob(),
		d.statisticsJob(),
		d.visitorCountJob(),
	}
	jobs = append(jobs, d.filteredJobsLocked()...)
	return append(jobs,
		d.locationsJob(),
		d.devicesJob(),
		d.browserOSJob(),
		d.growthJob(),
		d.dailyStatsJob(),
	)
}

// filteredJobsLocked returns the filtered list fetch, or nothing while the
// date range is incomplete.
func (d *Dashboard) filteredJobsLocked() []job {
	if !d.state.Filters.HasValidDateRange() {
		d.logger.Debug("filtered list deferred until both dates are set")
		return nil
	}
	filters := d.state.Filters
	return []job{{
		kind: KindFilteredVisitors,
		run: func(ctx context.Context) (commit, error) {
			page, err := d.client.FilterVisitors(ctx, filters)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				d.state.Visitors = page
				return nil
			}, nil
		},
	}}
}

func (d *Dashboard) totalVisitorsJob() job {
	return job{
		kind: KindTotalVisitors,
		run: func(ctx context.Context) (commit, error) {
			rows, err := d.client.TotalVisitorCounts(ctx)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				catalog := make([]visitors.ProjectSummary, 0, len(rows)+1)
				catalog = append(catalog, visitors.ProjectSummary{ProjectName: visitors.AllOption})
				catalog = append(catalog, rows...)
				d.state.Projects = catalog
				d.state.Filters = FilterPatch{ProjectName: strPtr(visitors.AllOption)}.Apply(d.state.Filters)
				return d.projectCascadeLocked()
			}, nil
		},
	}
}

func (d *Dashboard) visitorCountJob() job {
	project := d.state.Filters.ProjectName
	return job{
		kind: KindVisitorCount,
		run: func(ctx context.Context) (commit, error) {
			summary, err := d.client.VisitorCount(ctx, project)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				idx := -1
				for i, p := range d.state.Projects {
					if p.ProjectName == project {
						idx = i
						break
					}
				}
				if idx < 0 {
					return nil
				}
				catalog := append([]visitors.ProjectSummary(nil), d.state.Projects...)
				catalog[idx] = summary
				d.state.Projects = catalog
				return nil
			}, nil
		},
	}
}

func (d *Dashboard) trendJob() job {
	project, period := d.state.Filters.ProjectName, d.state.Period
	return job{
		kind: KindTrend,
		run: func(ctx context.Context) (commit, error) {
			points, err := d.client.VisitorTrend(ctx, project, period)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				d.state.Trend = points
				d.pushChart(charts.ChartTrend, seriesData(points))
				return nil
			}, nil
		},
	}
}

func (d *Dashboard) statisticsJob() job {
	project := d.state.Filters.ProjectName
	return job{
		kind: KindStatistics,
		run: func(ctx context.Context) (commit, error) {
			stats, err := d.client.VisitorStatistics(ctx, project)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				d.state.Statistics = &stats
				return nil
			}, nil
		},
	}
}

func (d *Dashboard) locationsJob() job {
	return job{
		kind: KindLocations,
		run: func(ctx context.Context) (commit, error) {
			rows, err := d.client.Locations(ctx)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(rows))
			for _, r := range rows {
				names = append(names, r.Location)
			}
			return func(d *Dashboard) []job {
				d.state.Locations = withAll(names)
				if slices.Contains(d.state.Locations, d.state.Filters.Location) {
					return nil
				}
				d.state.Filters = FilterPatch{Location: strPtr(visitors.AllOption)}.Apply(d.state.Filters)
				return d.filteredJobsLocked()
			}, nil
		},
	}
}

func (d *Dashboard) devicesJob() job {
	return job{
		kind: KindDevices,
		run: func(ctx context.Context) (commit, error) {
			rows, err := d.client.Devices(ctx)
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(rows))
			for _, r := range rows {
				names = append(names, r.Device)
			}
			return func(d *Dashboard) []job {
				d.state.Devices = withAll(names)
				if slices.Contains(d.state.Devices, d.state.Filters.Device) {
					return nil
				}
				d.state.Filters = FilterPatch{Device: strPtr(visitors.AllOption)}.Apply(d.state.Filters)
				return d.filteredJobsLocked()
			}, nil
		},
	}
}

func (d *Dashboard) browserOSJob() job {
	return job{
		kind: KindBrowserOS,
		run: func(ctx context.Context) (commit, error) {
			stats, err := d.client.BrowserOSStats(ctx)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				d.state.BrowserOS = stats
				d.pushChart(charts.ChartBrowser, seriesData(stats.BrowserStats))
				d.pushChart(charts.ChartOS, seriesData(stats.OSStats))
				return nil
			}, nil
		},
	}
}

func (d *Dashboard) growthJob() job {
	return job{
		kind: KindGrowth,
		run: func(ctx context.Context) (commit, error) {
			points, err := d.client.VisitorGrowth(ctx)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				d.state.Growth = points
				d.pushChart(charts.ChartGrowth, seriesData(points))
				return nil
			}, nil
		},
	}
}

func (d *Dashboard) dailyStatsJob() job {
	project, days := d.state.Filters.ProjectName, d.state.Days
	return job{
		kind: KindDailyStats,
		run: func(ctx context.Context) (commit, error) {
			result, err := d.client.DailyStats(ctx, project, days)
			if err != nil {
				return nil, err
			}
			return func(d *Dashboard) []job {
				d.state.DailyStats = result
				data := charts.Data{
					Categories: make([]string, 0, len(result.DailyStats)),
					Values:     make([]float64, 0, len(result.DailyStats)),
				}
				for _, s := range result.DailyStats {
					data.Categories = append(data.Categories, s.Date)
					data.Values = append(data.Values, float64(s.UniqueVisitors))
				}
				d.pushChart(charts.ChartDailyStats, data)
				return nil
			}, nil
		},
	}
}

func (d *Dashboard) activeVisitorsJob() job {
	window := d.activeWindow
	return job{
		kind: KindActiveVisitors,
		run: func(ctx context.Context) (commit, error) {
			raw, err := d.client.ActiveVisitors(ctx, window)
			if err != nil {
				return nil, err
			}
			count := CountActiveVisitors(raw, d.logger)
			return func(d *Dashboard) []job {
				d.state.ActiveVisitors = count
				return nil
			}, nil
		},
	}
}

// pushChart hands new series data to the chart manager. Called with d.mu held.
func (d *Dashboard) pushChart(id charts.ChartID, data charts.Data) {
	if d.charts == nil {
		return
	}
	if err := d.charts.Update(id, data); err != nil {
		d.logger.Warn("chart update failed", slog.String("chart", string(id)), slog.Any("error", err))
	}
}

func seriesData(points []visitors.TrendPoint) charts.Data {
	data := charts.Data{
		Categories: make([]string, 0, len(points)),
		Values:     make([]float64, 0, len(points)),
	}
	for _, p := range points {
		data.Categories = append(data.Categories, p.BucketID)
		data.Values = append(data.Values, float64(p.Count))
	}
	return data
}

// withAll drops empty names and prepends the All option.
func withAll(names []string) []string {
	out := make([]string, 0, len(names)+1)
	out = append(out, visitors.AllOption)
	for _, n := range names {
		if n == "" || n == visitors.AllOption {
			continue
		}
		out = append(out, n)
	}
	return out
}
