package charts

// Theme is the light/dark presentation mode.
type Theme string

// Themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeFor maps a dark mode flag to a theme.
func ThemeFor(dark bool) Theme {
	if dark {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Categorical is the fixed qualitative palette for breakdown charts.
var Categorical = []string{
	"rgb(255, 99, 132)",
	"rgb(54, 162, 235)",
	"rgb(255, 206, 86)",
	"rgb(75, 192, 192)",
	"rgb(153, 102, 255)",
}

// Daily stats colors do not change with the theme.
const (
	DailyFill   = "rgba(54, 162, 235, 0.7)"
	DailyBorder = "rgb(54, 162, 235)"
)

// Palette groups the theme dependent colors.
type Palette struct {
	Accent     string
	AccentFill string
	Tick       string
	Grid       string
}

var palettes = map[Theme]Palette{
	ThemeLight: {
		Accent:     "rgb(75, 192, 192)",
		AccentFill: "rgba(75, 192, 192, 0.7)",
		Tick:       "#666",
		Grid:       "rgba(0, 0, 0, 0.1)",
	},
	ThemeDark: {
		Accent:     "rgb(147, 197, 253)",
		AccentFill: "rgba(147, 197, 253, 0.7)",
		Tick:       "#fff",
		Grid:       "rgba(255, 255, 255, 0.1)",
	},
}

// PaletteFor returns the palette of a theme, defaulting to light.
func PaletteFor(theme Theme) Palette {
	if p, ok := palettes[theme]; ok {
		return p
	}
	return palettes[ThemeLight]
}

func (p Palette) axisStyle() Style {
	return Style{
		Responsive:     true,
		ShowScales:     true,
		BeginAtZero:    true,
		TickColor:      p.Tick,
		GridColor:      p.Grid,
		LegendColor:    p.Tick,
		LegendPosition: "top",
	}
}

func (p Palette) legendStyle() Style {
	return Style{
		Responsive:     true,
		LegendColor:    p.Tick,
		LegendPosition: "right",
	}
}
