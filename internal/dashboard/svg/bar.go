package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Bars renders a single series bar chart on a zero based axis.
func Bars(width, height int, series []float64, labels []string, opts BarOpts) (template.HTML, error) {
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
	fill := fallback(opts.FillColor, "rgba(54, 162, 235, 0.7)")
	border := fallback(opts.BorderColor, fill)
	tickColor := fallback(opts.TickColor, "#666")
	gridColor := fallback(opts.GridColor, "rgba(0, 0, 0, 0.1)")
	legendColor := fallback(opts.LegendColor, tickColor)

	maxVal := upperBound(series)
	scale := v.plotH / maxVal
	slot := v.plotW / float64(len(series))
	barWidth := slot * 0.6

	var b strings.Builder
	openSVG(&b, v, opts.Frame, "bar", "Bar chart")
	grid(&b, v, maxVal, tickColor, gridColor)
	legend(&b, v, []string{fallback(opts.Label, "Series")}, []string{fill}, legendColor)

	for i, value := range series {
		h := math.Min(math.Max(value, 0)*scale, v.plotH)
		x := v.padding + float64(i)*slot + (slot-barWidth)/2
		y := v.bottom() - h
		fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%d\" aria-label=\"%s %s\"></rect>",
			x, y, barWidth, h, fill, border, opts.BorderWidth, template.HTMLEscapeString(labels[i]), formatTick(value))
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>",
			v.padding+float64(i)*slot+slot/2, v.bottom()+14, tickColor, template.HTMLEscapeString(labels[i]))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
