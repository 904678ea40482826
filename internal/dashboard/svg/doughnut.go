package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Doughnut renders a share-of-total ring with a legend.
func Doughnut(width, height int, values []float64, labels []string, opts DoughnutOpts) (template.HTML, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("svg: values required")
	}
	if len(values) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match values")
	}
	v, err := newViewport(width, height, opts.Frame)
	if err != nil {
		return "", err
	}
	total := 0.0
	for _, value := range values {
		if value < 0 {
			return "", fmt.Errorf("svg: negative slice value %v", value)
		}
		total += value
	}
	colors := opts.Colors
	if len(colors) == 0 {
		colors = []string{"rgb(54, 162, 235)"}
	}
	legendColor := fallback(opts.LegendColor, "#666")

	outer := math.Min(v.plotW, v.plotH) / 2
	if !opts.LegendRight {
		outer = math.Min(v.plotW, v.plotH-16) / 2
	}
	if outer <= 4 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	ring := outer * 0.5
	mid := outer - ring/2
	cx := v.padding + outer
	if !opts.LegendRight {
		cx = float64(v.width) / 2
	}
	cy := v.padding + outer
	circumference := 2 * math.Pi * mid

	var b strings.Builder
	openSVG(&b, v, opts.Frame, "doughnut", "Doughnut chart")
	fmt.Fprintf(&b, "<g transform=\"rotate(-90 %.2f %.2f)\">", cx, cy)
	if total <= 0 {
		fmt.Fprintf(&b, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"none\" stroke=\"%s\" stroke-width=\"%.2f\"></circle>", cx, cy, mid, fallback(opts.GridColor, "rgba(0, 0, 0, 0.1)"), ring)
	} else {
		offset := 0.0
		for i, value := range values {
			length := value / total * circumference
			fmt.Fprintf(&b, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"none\" stroke=\"%s\" stroke-width=\"%.2f\" stroke-dasharray=\"%.2f %.2f\" stroke-dashoffset=\"%.2f\" aria-label=\"%s %s\"></circle>",
				cx, cy, mid, colors[i%len(colors)], ring, length, circumference-length, -offset, template.HTMLEscapeString(labels[i]), formatTick(value))
			offset += length
		}
	}
	b.WriteString("</g>")

	if opts.LegendRight {
		x := cx + outer + 24
		y := v.padding + 10
		for i, label := range labels {
			fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", x, y-8, colors[i%len(colors)])
			fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", x+14, y, legendColor, template.HTMLEscapeString(label))
			y += 16
		}
	} else {
		x := v.padding
		y := cy + outer + 16
		for i, label := range labels {
			fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", x, y-8, colors[i%len(colors)])
			fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", x+14, y, legendColor, template.HTMLEscapeString(label))
			x += 14 + float64(len(label))*6 + 16
		}
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
