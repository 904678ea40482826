package charts

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrUnknownChart is returned when a chart id is not managed.
var ErrUnknownChart = errors.New("charts: unknown chart")

type slot struct {
	data    Data
	hasData bool
	desc    Descriptor
	handle  Handle
	live    bool
}

// Manager holds at most one live instance per chart. Every rebuild destroys
// the previous instance before constructing the next one.
type Manager struct {
	mu       sync.Mutex
	renderer Renderer
	surface  Surface
	theme    Theme
	logger   *slog.Logger
	slots    map[ChartID]*slot
	closed   bool
}

// NewManager builds a Manager rendering through renderer into surface.
func NewManager(renderer Renderer, surface Surface, theme Theme, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	slots := make(map[ChartID]*slot, len(AllCharts))
	for _, id := range AllCharts {
		slots[id] = &slot{}
	}
	return &Manager{
		renderer: renderer,
		surface:  surface,
		theme:    theme,
		logger:   logger,
		slots:    slots,
	}
}

// Theme returns the active theme.
func (m *Manager) Theme() Theme {
	if m == nil {
		return ThemeLight
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.theme
}

// Update stores new data for a chart and rebuilds it.
func (m *Manager) Update(id ChartID, data Data) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrUnknownChart
	}
	if m.closed {
		return nil
	}
	s.data = Data{
		Categories: append([]string(nil), data.Categories...),
		Values:     append([]float64(nil), data.Values...),
	}
	s.hasData = true
	return m.rebuild(id, s)
}

// SetTheme switches the theme and rebuilds every chart that has data.
func (m *Manager) SetTheme(theme Theme) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.theme == theme {
		return nil
	}
	m.theme = theme
	return m.rebuildAll()
}

// ToggleTheme flips between light and dark and returns the new theme.
func (m *Manager) ToggleTheme() (Theme, error) {
	if m == nil {
		return ThemeLight, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme = m.theme.Toggle()
	return m.theme, m.rebuildAll()
}

// Refresh rebuilds every chart that has data with the current theme.
func (m *Manager) Refresh() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuildAll()
}

// Live reports whether a chart currently has a live instance.
func (m *Manager) Live(id ChartID) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return ok && s.live
}

// Descriptor returns the descriptor of the live instance of a chart.
func (m *Manager) Descriptor(id ChartID) (Descriptor, bool) {
	if m == nil {
		return Descriptor{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || !s.live {
		return Descriptor{}, false
	}
	return s.desc, true
}

// Close destroys every live instance. Later updates are ignored.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	var errs []error
	for _, id := range AllCharts {
		if err := m.destroy(m.slots[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) rebuildAll() error {
	if m.closed {
		return nil
	}
	var errs []error
	for _, id := range AllCharts {
		s := m.slots[id]
		if !s.hasData {
			continue
		}
		if err := m.rebuild(id, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) rebuild(id ChartID, s *slot) error {
	if err := m.destroy(s); err != nil {
		m.logger.Warn("chart destroy failed", slog.String("chart", string(id)), slog.Any("error", err))
	}
	anchor := id.Anchor()
	if m.surface != nil && !m.surface.HasAnchor(anchor) {
		m.logger.Debug("chart anchor missing", slog.String("chart", string(id)), slog.String("anchor", anchor))
		return nil
	}
	if m.renderer == nil {
		return nil
	}
	desc := Build(id, s.data, m.theme)
	handle, err := m.renderer.Construct(anchor, desc)
	if err != nil {
		m.logger.Error("chart construct failed", slog.String("chart", string(id)), slog.Any("error", err))
		return err
	}
	s.desc = desc
	s.handle = handle
	s.live = true
	return nil
}

func (m *Manager) destroy(s *slot) error {
	if !s.live {
		return nil
	}
	s.live = false
	handle := s.handle
	s.handle = Handle{}
	s.desc = Descriptor{}
	if m.renderer == nil {
		return nil
	}
	return m.renderer.Destroy(handle)
}
