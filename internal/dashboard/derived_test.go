package dashboard

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

func TestLocalDateUsesViewerTimezone(t *testing.T) {
	instant := time.Date(2025, time.March, 1, 20, 0, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)
	honolulu := time.FixedZone("HST", -10*3600)

	assert.Equal(t, "2025-03-02", LocalDate(instant, tokyo))
	assert.Equal(t, "2025-03-01", LocalDate(instant, honolulu))
	assert.Equal(t, "2025-02-28", LocalDate(time.Date(2025, time.March, 1, 5, 0, 0, 0, time.UTC), honolulu))
}

func TestResolveDateRange(t *testing.T) {
	now := time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC)
	cases := []struct {
		r     DateRange
		loc   *time.Location
		start string
		end   string
	}{
		{RangeToday, time.UTC, "2025-03-10", "2025-03-10"},
		{RangeWeek, time.UTC, "2025-03-03", "2025-03-10"},
		{RangeMonth, time.UTC, "2025-02-08", "2025-03-10"},
		{RangeYear, time.UTC, "2025-01-01", "2025-03-10"},
		{RangeToday, time.FixedZone("CET", 3600), "2025-03-11", "2025-03-11"},
		{RangeWeek, time.FixedZone("CET", 3600), "2025-03-04", "2025-03-11"},
	}
	for _, tc := range cases {
		start, end, err := ResolveDateRange(tc.r, now, tc.loc)
		require.NoError(t, err)
		assert.Equal(t, tc.start, start, "%s in %s", tc.r, tc.loc)
		assert.Equal(t, tc.end, end, "%s in %s", tc.r, tc.loc)
	}

	_, _, err := ResolveDateRange("fortnight", now, time.UTC)
	require.ErrorIs(t, err, ErrUnknownDateRange)
}

func TestResolveDateRangeYearOnNewYearsDay(t *testing.T) {
	now := time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)
	start, end, err := ResolveDateRange(RangeYear, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", start)
	assert.Equal(t, "2026-01-01", end)
}

func TestDefaultFilters(t *testing.T) {
	f := DefaultFilters(fixedNow, time.UTC, 0)
	assert.Equal(t, "2025-03-01", f.StartDate)
	assert.Equal(t, "2025-03-10", f.EndDate)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, DefaultPageLimit, f.Limit)
	assert.Equal(t, visitors.AllOption, f.Location)
	assert.NoError(t, ValidateFilters(f))
}

func TestFilterPatchApplyDoesNotMutate(t *testing.T) {
	base := DefaultFilters(fixedNow, time.UTC, 10)
	merged := FilterPatch{Browser: strPtr("Safari"), Page: intPtr(4)}.Apply(base)

	assert.Equal(t, visitors.AllOption, base.Browser)
	assert.Equal(t, 1, base.Page)
	assert.Equal(t, "Safari", merged.Browser)
	assert.Equal(t, 4, merged.Page)
	assert.Equal(t, base.StartDate, merged.StartDate)
}

func TestPagination(t *testing.T) {
	cases := []struct {
		page, limit, total int
		next               bool
	}{
		{1, 10, 0, false},
		{1, 10, 10, false},
		{1, 10, 11, true},
		{2, 10, 11, false},
		{2, 10, 30, true},
		{3, 10, 30, false},
		{1, 0, 50, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.next, HasNextPage(tc.page, tc.limit, tc.total), "page=%d limit=%d total=%d", tc.page, tc.limit, tc.total)
	}
	assert.False(t, HasPreviousPage(1))
	assert.True(t, HasPreviousPage(2))
	assert.True(t, HasPreviousPage(40))
	assert.Equal(t, 3, TotalPages(21, 10))
	assert.Zero(t, TotalPages(5, 0))
}

func TestDerivedMetricsDefaults(t *testing.T) {
	var st State
	assert.Zero(t, st.TotalVisitors())
	assert.Empty(t, st.MostUsedBrowser())
	assert.Empty(t, st.MostUsedDevice())
	assert.Empty(t, st.MostVisitedLocation())
	assert.False(t, st.HasValidDateRange())
	assert.False(t, st.HasPreviousPage())

	st.Filters.ProjectName = "shop"
	st.Projects = []visitors.ProjectSummary{{ProjectName: "blog", UniqueVisitors: 4}}
	assert.Zero(t, st.TotalVisitors())
	st.Statistics = &visitors.VisitorStatistics{MostUsedDevice: "Tablet", MostVisitedLocation: "Oslo"}
	assert.Equal(t, "Tablet", st.MostUsedDevice())
	assert.Equal(t, "Oslo", st.MostVisitedLocation())
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}

func TestCountActiveVisitorsShapes(t *testing.T) {
	cases := map[string]int{
		`[{"_id":"a"},{"_id":"b"}]`:              2,
		`[]`:                                     0,
		`{"activeVisitors":[{"_id":"a"}]}`:       1,
		`{"activeVisitors":[]}`:                  0,
		`{"count":4}`:                            0,
		`{"activeVisitors":"three"}`:             0,
		`42`:                                     0,
		`null`:                                   0,
	}
	for payload, want := range cases {
		assert.Equal(t, want, CountActiveVisitors(json.RawMessage(payload), quietLogger()), payload)
	}
}

func TestFailureMessages(t *testing.T) {
	for _, kind := range AllKinds {
		assert.NotEmpty(t, kind.FailureMessage(), kind)
	}
	assert.Equal(t, "Failed to load browser/OS statistics", KindBrowserOS.FailureMessage())
	assert.Equal(t, "Failed to load visitor growth data", KindGrowth.FailureMessage())

	kind, err := ParseFetchKind("daily-stats")
	require.NoError(t, err)
	assert.Equal(t, KindDailyStats, kind)
	_, err = ParseFetchKind("weather")
	require.ErrorIs(t, err, ErrUnknownKind)
}
