// Package svg renders dashboard charts as inline SVG markup.
package svg

// Frame holds the axis and legend colors shared by every chart kind.
type Frame struct {
	Title       string
	Description string
	TickColor   string
	GridColor   string
	LegendColor string
	Padding     float64
	TickCount   int
}

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Frame
	Label       string
	StrokeColor string
	// FillColor paints the area under the line; empty leaves it unfilled.
	FillColor string
	ShowDots  bool
}

// BarOpts customises the single series bar renderer.
type BarOpts struct {
	Frame
	Label       string
	FillColor   string
	BorderColor string
	BorderWidth int
}

// DoughnutOpts customises the doughnut renderer.
type DoughnutOpts struct {
	Frame
	Colors []string
	// LegendRight places the legend beside the ring instead of below it.
	LegendRight bool
}

// Chart defaults.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 28.0
	DefaultTicks   = 5
)
