package viewtui

import "github.com/charmbracelet/lipgloss"

// BaseColors defines global UI colors.
type BaseColors struct {
	Background string
	Foreground string
	Muted      string
	Accent     string
	Border     string
}

// RoleColors defines colors per message author.
type RoleColors struct {
	User      string
	Assistant string
	Tool      string
	System    string
}

// ChromeColors defines non-content UI colors.
type ChromeColors struct {
	Header       string
	Footer       string
	SelectedItem string
	TurnHeader   string
	Rollup       string
}

// Palette defines the loupe TUI style tokens.
type Palette struct {
	Name string

	Base   BaseColors
	Role   RoleColors
	Chrome ChromeColors
}

// DefaultPalette is the baseline dark palette.
var DefaultPalette = Palette{
	Name: "default",
	Base: BaseColors{
		Background: "234",
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
	},
	Role: RoleColors{
		User:      "81",
		Assistant: "252",
		Tool:      "147",
		System:    "214",
	},
	Chrome: ChromeColors{
		Header:       "111",
		Footer:       "110",
		SelectedItem: "75",
		TurnHeader:   "109",
		Rollup:       "220",
	},
}

// HighContrastPalette favors readability on washed-out terminals.
var HighContrastPalette = Palette{
	Name: "high-contrast",
	Base: BaseColors{
		Background: "16",
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Border:     "255",
	},
	Role: RoleColors{
		User:      "51",
		Assistant: "231",
		Tool:      "183",
		System:    "226",
	},
	Chrome: ChromeColors{
		Header:       "123",
		Footer:       "123",
		SelectedItem: "51",
		TurnHeader:   "159",
		Rollup:       "226",
	},
}

// Palettes lists available palettes by name.
var Palettes = map[string]Palette{
	"default":       DefaultPalette,
	"high-contrast": HighContrastPalette,
}

func (p Palette) mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(p.Base.Muted))
}

func (p Palette) roleStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}
