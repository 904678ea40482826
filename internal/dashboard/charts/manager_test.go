package charts

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	mu        sync.Mutex
	seq       uint64
	live      map[Handle]Descriptor
	anchors   map[string]bool
	events    []string
	failNext  error
	destroyed int
}

func newFakeRenderer(anchors ...string) *fakeRenderer {
	r := &fakeRenderer{live: map[Handle]Descriptor{}, anchors: map[string]bool{}}
	for _, a := range anchors {
		r.anchors[a] = true
	}
	return r
}

func allAnchors() []string {
	out := make([]string, 0, len(AllCharts))
	for _, id := range AllCharts {
		out = append(out, id.Anchor())
	}
	return out
}

func (r *fakeRenderer) HasAnchor(anchor string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.anchors[anchor]
}

func (r *fakeRenderer) Construct(anchor string, desc Descriptor) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return Handle{}, err
	}
	for h := range r.live {
		if h.Anchor == anchor {
			return Handle{}, errors.New("anchor already holds a chart")
		}
	}
	r.seq++
	h := Handle{Anchor: anchor, Seq: r.seq}
	r.live[h] = desc
	r.events = append(r.events, "construct:"+anchor)
	return h, nil
}

func (r *fakeRenderer) Destroy(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[h]; !ok {
		return errors.New("unknown handle")
	}
	delete(r.live, h)
	r.destroyed++
	r.events = append(r.events, "destroy:"+h.Anchor)
	return nil
}

func (r *fakeRenderer) liveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateReplacesPreviousInstance(t *testing.T) {
	r := newFakeRenderer(allAnchors()...)
	m := NewManager(r, r, ThemeLight, quietLogger())

	require.NoError(t, m.Update(ChartTrend, Data{Categories: []string{"a"}, Values: []float64{1}}))
	require.NoError(t, m.Update(ChartTrend, Data{Categories: []string{"a", "b"}, Values: []float64{1, 2}}))

	assert.Equal(t, 1, r.liveCount())
	assert.Equal(t, []string{"construct:trendChart", "destroy:trendChart", "construct:trendChart"}, r.events)

	desc, ok := m.Descriptor(ChartTrend)
	require.True(t, ok)
	assert.Equal(t, TypeLine, desc.Type)
	assert.Equal(t, []string{"a", "b"}, desc.Categories)
	assert.Equal(t, "rgb(75, 192, 192)", desc.Series[0].BorderColor)
}

func TestMissingAnchorSkipsConstruction(t *testing.T) {
	r := newFakeRenderer("trendChart")
	m := NewManager(r, r, ThemeLight, quietLogger())

	require.NoError(t, m.Update(ChartBrowser, Data{Categories: []string{"Chrome"}, Values: []float64{3}}))
	assert.False(t, m.Live(ChartBrowser))
	assert.Zero(t, r.liveCount())
}

func TestToggleThemeRebuildsLiveCharts(t *testing.T) {
	r := newFakeRenderer(allAnchors()...)
	m := NewManager(r, r, ThemeLight, quietLogger())

	trend := Data{Categories: []string{"2025-01-01"}, Values: []float64{4}}
	require.NoError(t, m.Update(ChartTrend, trend))
	require.NoError(t, m.Update(ChartGrowth, Data{Categories: []string{"2025-01"}, Values: []float64{9}}))

	theme, err := m.ToggleTheme()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
	assert.Equal(t, 2, r.liveCount())
	assert.Equal(t, 2, r.destroyed)

	desc, ok := m.Descriptor(ChartTrend)
	require.True(t, ok)
	assert.Equal(t, "rgb(147, 197, 253)", desc.Series[0].BorderColor)
	assert.Equal(t, "#fff", desc.Style.TickColor)
	assert.Equal(t, "rgba(255, 255, 255, 0.1)", desc.Style.GridColor)
	assert.Equal(t, trend.Categories, desc.Categories)
	assert.Equal(t, trend.Values, desc.Series[0].Values)

	assert.False(t, m.Live(ChartBrowser))
}

func TestConstructFailureLeavesChartAbsent(t *testing.T) {
	r := newFakeRenderer(allAnchors()...)
	m := NewManager(r, r, ThemeLight, quietLogger())

	require.NoError(t, m.Update(ChartOS, Data{Categories: []string{"Linux"}, Values: []float64{1}}))
	r.failNext = errors.New("boom")
	err := m.Update(ChartOS, Data{Categories: []string{"Linux"}, Values: []float64{2}})
	require.Error(t, err)
	assert.False(t, m.Live(ChartOS))
	assert.Zero(t, r.liveCount())
}

func TestCloseDestroysEverything(t *testing.T) {
	r := newFakeRenderer(allAnchors()...)
	m := NewManager(r, r, ThemeDark, quietLogger())
	for _, id := range AllCharts {
		require.NoError(t, m.Update(id, Data{Categories: []string{"x"}, Values: []float64{1}}))
	}
	assert.Equal(t, len(AllCharts), r.liveCount())

	require.NoError(t, m.Close())
	assert.Zero(t, r.liveCount())

	require.NoError(t, m.Update(ChartTrend, Data{Categories: []string{"y"}, Values: []float64{2}}))
	assert.Zero(t, r.liveCount())
}

func TestBuildDescriptors(t *testing.T) {
	data := Data{Categories: []string{"Chrome", "Firefox"}, Values: []float64{3, 1}}

	doughnut := Build(ChartBrowser, data, ThemeDark)
	assert.Equal(t, TypeDoughnut, doughnut.Type)
	assert.Equal(t, "right", doughnut.Style.LegendPosition)
	assert.Equal(t, Categorical, doughnut.Series[0].BackgroundColors)
	assert.False(t, doughnut.Style.ShowScales)

	daily := Build(ChartDailyStats, data, ThemeDark)
	assert.Equal(t, TypeBar, daily.Type)
	assert.Equal(t, DailyBorder, daily.Series[0].BorderColor)
	assert.True(t, daily.Style.BeginAtZero)

	growthLight := Build(ChartGrowth, data, ThemeLight)
	assert.Equal(t, "#666", growthLight.Style.TickColor)
	assert.Equal(t, "rgba(0, 0, 0, 0.1)", growthLight.Style.GridColor)
}
