package svg

import (
	"errors"
	"fmt"
	"html/template"
	"sync"

	"github.com/odyssey-erp/visitor-insights/internal/dashboard/charts"
)

// Surface errors.
var (
	ErrNoAnchor      = errors.New("svg: anchor not present")
	ErrAnchorInUse   = errors.New("svg: anchor already holds a chart")
	ErrUnknownHandle = errors.New("svg: unknown chart handle")
)

const emptyState = "No data available"

type canvas struct {
	handle charts.Handle
	markup template.HTML
}

// Surface is a set of named anchors, each holding at most one rendered
// chart. It implements charts.Renderer and charts.Surface.
type Surface struct {
	mu      sync.RWMutex
	anchors map[string]*canvas
	seq     uint64
	width   int
	height  int
}

// NewSurface creates a surface exposing the given anchors.
func NewSurface(width, height int, anchors ...string) *Surface {
	s := &Surface{anchors: make(map[string]*canvas, len(anchors)), width: width, height: height}
	for _, a := range anchors {
		s.anchors[a] = nil
	}
	return s
}

// AddAnchor makes an anchor available.
func (s *Surface) AddAnchor(anchor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.anchors[anchor]; !ok {
		s.anchors[anchor] = nil
	}
}

// RemoveAnchor drops an anchor together with any chart it holds.
func (s *Surface) RemoveAnchor(anchor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.anchors, anchor)
}

// HasAnchor reports whether the anchor is present.
func (s *Surface) HasAnchor(anchor string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.anchors[anchor]
	return ok
}

// Construct renders a descriptor into an empty anchor.
func (s *Surface) Construct(anchor string, desc charts.Descriptor) (charts.Handle, error) {
	markup, err := Render(s.width, s.height, desc)
	if err != nil {
		return charts.Handle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.anchors[anchor]
	if !ok {
		return charts.Handle{}, fmt.Errorf("%w: %s", ErrNoAnchor, anchor)
	}
	if current != nil {
		return charts.Handle{}, fmt.Errorf("%w: %s", ErrAnchorInUse, anchor)
	}
	s.seq++
	handle := charts.Handle{Anchor: anchor, Seq: s.seq}
	s.anchors[anchor] = &canvas{handle: handle, markup: markup}
	return handle, nil
}

// Destroy clears the anchor holding the handle.
func (s *Surface) Destroy(handle charts.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.anchors[handle.Anchor]
	if !ok || current == nil || current.handle != handle {
		return ErrUnknownHandle
	}
	s.anchors[handle.Anchor] = nil
	return nil
}

// SVG returns the markup held by an anchor.
func (s *Surface) SVG(anchor string) (template.HTML, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current := s.anchors[anchor]
	if current == nil {
		return "", false
	}
	return current.markup, true
}

// Render turns a chart descriptor into SVG markup. Charts without data render
// a placeholder.
func Render(width, height int, desc charts.Descriptor) (template.HTML, error) {
	if len(desc.Series) == 0 || len(desc.Categories) == 0 {
		return placeholder(width, height, desc.Title), nil
	}
	series := desc.Series[0]
	frame := Frame{
		Title:       desc.Title,
		TickColor:   desc.Style.TickColor,
		GridColor:   desc.Style.GridColor,
		LegendColor: desc.Style.LegendColor,
	}
	switch desc.Type {
	case charts.TypeLine:
		return Line(width, height, series.Values, desc.Categories, LineOpts{
			Frame:       frame,
			Label:       series.Label,
			StrokeColor: series.BorderColor,
			ShowDots:    true,
		})
	case charts.TypeBar:
		fill := ""
		if len(series.BackgroundColors) > 0 {
			fill = series.BackgroundColors[0]
		}
		return Bars(width, height, series.Values, desc.Categories, BarOpts{
			Frame:       frame,
			Label:       series.Label,
			FillColor:   fill,
			BorderColor: series.BorderColor,
			BorderWidth: series.BorderWidth,
		})
	case charts.TypeDoughnut:
		return Doughnut(width, height, series.Values, desc.Categories, DoughnutOpts{
			Frame:       frame,
			Colors:      series.BackgroundColors,
			LegendRight: desc.Style.LegendPosition == "right",
		})
	default:
		return "", fmt.Errorf("svg: unsupported chart type %q", desc.Type)
	}
}

func placeholder(width, height int, title string) template.HTML {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return template.HTML(fmt.Sprintf(
		"<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\"><title>%s</title><text x=\"%d\" y=\"%d\" font-size=\"12\" text-anchor=\"middle\" fill=\"#666\">%s</text></svg>",
		width, height, template.HTMLEscapeString(fallback(title, "Chart")), width/2, height/2, emptyState))
}
