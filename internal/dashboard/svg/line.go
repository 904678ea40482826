package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

type viewport struct {
	width, height int
	padding       float64
	plotW, plotH  float64
	ticks         int
}

func newViewport(width, height int, frame Frame) (viewport, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := frame.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	ticks := frame.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	v := viewport{
		width:   width,
		height:  height,
		padding: padding,
		plotW:   float64(width) - 2*padding,
		plotH:   float64(height) - 2*padding,
		ticks:   ticks,
	}
	if v.plotW <= 0 || v.plotH <= 0 {
		return viewport{}, fmt.Errorf("svg: viewport too small")
	}
	return v, nil
}

func (v viewport) bottom() float64 { return v.padding + v.plotH }

// Line renders a single series line chart over the given labels.
func Line(width, height int, series []float64, labels []string, opts LineOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(series) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match series")
	}
	v, err := newViewport(width, height, opts.Frame)
	if err != nil {
		return "", err
	}
	stroke := fallback(opts.StrokeColor, "rgb(75, 192, 192)")
	tickColor := fallback(opts.TickColor, "#666")
	gridColor := fallback(opts.GridColor, "rgba(0, 0, 0, 0.1)")
	legendColor := fallback(opts.LegendColor, tickColor)

	maxVal := upperBound(series)
	scale := v.plotH / maxVal

	xAt := func(i int) float64 {
		if len(series) == 1 {
			return v.padding + v.plotW/2
		}
		return v.padding + float64(i)*v.plotW/float64(len(series)-1)
	}
	yAt := func(value float64) float64 {
		return v.bottom() - math.Max(value, 0)*scale
	}

	var path strings.Builder
	for i, value := range series {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		if i > 0 {
			path.WriteByte(' ')
		}
		fmt.Fprintf(&path, "%s%.2f %.2f", cmd, xAt(i), yAt(value))
	}

	var b strings.Builder
	openSVG(&b, v, opts.Frame, "line", "Line chart")
	grid(&b, v, maxVal, tickColor, gridColor)
	legend(&b, v, []string{fallback(opts.Label, "Series")}, []string{stroke}, legendColor)

	if opts.FillColor != "" {
		area := fmt.Sprintf("%s L%.2f %.2f L%.2f %.2f Z", path.String(), xAt(len(series)-1), v.bottom(), xAt(0), v.bottom())
		fmt.Fprintf(&b, "<path d=\"%s\" fill=\"%s\" stroke=\"none\" aria-hidden=\"true\"></path>", area, opts.FillColor)
	}
	fmt.Fprintf(&b, "<path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-linejoin=\"round\" stroke-linecap=\"round\"></path>", path.String(), stroke)
	if opts.ShowDots {
		for i, value := range series {
			fmt.Fprintf(&b, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"3\" fill=\"%s\"></circle>", xAt(i), yAt(value), stroke)
		}
	}
	for i, label := range labels {
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", xAt(i), v.bottom()+14, tickColor, template.HTMLEscapeString(label))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func openSVG(b *strings.Builder, v viewport, frame Frame, kind, defaultTitle string) {
	titleID := makeID(frame.Title, kind+"-title")
	descID := makeID(frame.Title, kind+"-desc")
	fmt.Fprintf(b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", v.width, v.height, titleID, descID)
	fmt.Fprintf(b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(frame.Title, defaultTitle)))
	fmt.Fprintf(b, "<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(frame.Description, "Visitor data")))
}

// grid draws the horizontal grid, the y ticks starting at zero and both axes.
func grid(b *strings.Builder, v viewport, maxVal float64, tickColor, gridColor string) {
	for i := 0; i <= v.ticks; i++ {
		ratio := float64(i) / float64(v.ticks)
		y := v.bottom() - ratio*v.plotH
		fmt.Fprintf(b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" aria-hidden=\"true\"></line>", v.padding, y, v.padding+v.plotW, y, gridColor)
		fmt.Fprintf(b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", v.padding-6, y+4, tickColor, template.HTMLEscapeString(formatTick(maxVal*ratio)))
	}
	fmt.Fprintf(b, "<g stroke=\"%s\" aria-label=\"Axes\">", gridColor)
	fmt.Fprintf(b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", v.padding, v.padding, v.padding, v.bottom())
	fmt.Fprintf(b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", v.padding, v.bottom(), v.padding+v.plotW, v.bottom())
	b.WriteString("</g>")
}

// legend draws a row of swatches above the plot area.
func legend(b *strings.Builder, v viewport, labels, colors []string, textColor string) {
	y := math.Max(v.padding-12, 12)
	x := v.padding
	for i, label := range labels {
		color := colors[i%len(colors)]
		fmt.Fprintf(b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", x, y-8, color)
		fmt.Fprintf(b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", x+14, y, textColor, template.HTMLEscapeString(label))
		x += 14 + float64(len(label))*6 + 16
	}
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

// upperBound returns the top of a zero based y axis.
func upperBound(series []float64) float64 {
	maxVal := 0.0
	for _, v := range series {
		if v > maxVal {
			maxVal = v
		}
	}
	if almostEqual(maxVal, 0) {
		return 1
	}
	return maxVal
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}
