// Package charts owns the dashboard chart instances and rebuilds them from
// declarative descriptors whenever their data or the theme changes.
package charts

// ChartID names one of the dashboard charts.
type ChartID string

// Dashboard charts.
const (
	ChartTrend      ChartID = "trend"
	ChartBrowser    ChartID = "browser"
	ChartOS         ChartID = "os"
	ChartGrowth     ChartID = "growth"
	ChartDailyStats ChartID = "daily-stats"
)

// AllCharts lists every managed chart in rebuild order.
var AllCharts = []ChartID{ChartTrend, ChartBrowser, ChartOS, ChartGrowth, ChartDailyStats}

// Anchor returns the anchor surface a chart renders into.
func (id ChartID) Anchor() string {
	switch id {
	case ChartTrend:
		return "trendChart"
	case ChartBrowser:
		return "browserChart"
	case ChartOS:
		return "osChart"
	case ChartGrowth:
		return "growthChart"
	case ChartDailyStats:
		return "dailyStatsChart"
	default:
		return string(id)
	}
}

// Type is the chart type tag understood by renderers.
type Type string

// Chart types.
const (
	TypeLine     Type = "line"
	TypeBar      Type = "bar"
	TypeDoughnut Type = "doughnut"
)

// Series is one dataset of a chart.
type Series struct {
	Label            string
	Values           []float64
	BorderColor      string
	BackgroundColors []string
	BorderWidth      int
	Tension          float64
}

// Style carries the theme dependent axis and legend styling.
type Style struct {
	Responsive     bool
	ShowScales     bool
	BeginAtZero    bool
	TickColor      string
	GridColor      string
	LegendColor    string
	LegendPosition string
}

// Descriptor is the full declarative description of a chart.
type Descriptor struct {
	Type       Type
	Title      string
	Categories []string
	Series     []Series
	Style      Style
}

// Data is the category/value series behind a chart.
type Data struct {
	Categories []string
	Values     []float64
}

// Handle identifies a live chart instance produced by a Renderer.
type Handle struct {
	Anchor string
	Seq    uint64
}

// Renderer constructs and destroys chart instances.
type Renderer interface {
	Construct(anchor string, desc Descriptor) (Handle, error)
	Destroy(handle Handle) error
}

// Surface reports which anchors are currently present in the view.
type Surface interface {
	HasAnchor(anchor string) bool
}

// Build returns the descriptor for a chart from its data and the theme.
func Build(id ChartID, data Data, theme Theme) Descriptor {
	palette := PaletteFor(theme)
	categories := append([]string(nil), data.Categories...)
	values := append([]float64(nil), data.Values...)

	switch id {
	case ChartTrend:
		return Descriptor{
			Type:       TypeLine,
			Title:      "Visitor Trend",
			Categories: categories,
			Series: []Series{{
				Label:       "Visitors",
				Values:      values,
				BorderColor: palette.Accent,
				Tension:     0.1,
			}},
			Style: palette.axisStyle(),
		}
	case ChartBrowser, ChartOS:
		title := "Browsers"
		if id == ChartOS {
			title = "Operating Systems"
		}
		return Descriptor{
			Type:       TypeDoughnut,
			Title:      title,
			Categories: categories,
			Series: []Series{{
				Values:           values,
				BackgroundColors: append([]string(nil), Categorical...),
			}},
			Style: palette.legendStyle(),
		}
	case ChartGrowth:
		return Descriptor{
			Type:       TypeBar,
			Title:      "Visitor Growth",
			Categories: categories,
			Series: []Series{{
				Label:            "Monthly Growth",
				Values:           values,
				BackgroundColors: []string{palette.AccentFill},
				BorderColor:      palette.Accent,
				BorderWidth:      1,
			}},
			Style: palette.axisStyle(),
		}
	case ChartDailyStats:
		return Descriptor{
			Type:       TypeBar,
			Title:      "Daily Unique Visitors",
			Categories: categories,
			Series: []Series{{
				Label:            "Unique Visitors",
				Values:           values,
				BackgroundColors: []string{DailyFill},
				BorderColor:      DailyBorder,
				BorderWidth:      1,
			}},
			Style: palette.axisStyle(),
		}
	default:
		return Descriptor{Type: TypeBar, Categories: categories, Series: []Series{{Values: values}}, Style: palette.axisStyle()}
	}
}
