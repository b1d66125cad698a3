package render

import "fmt"

// Theme holds the colors used to draw a diagram.
type Theme struct {
	Name       string
	Background string
	NodeFill   string
	NodeStroke string
	Text       string
	Line       string
	LabelFill  string
	FontFamily string
}

// Theme names.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// DarkTheme is the default warm dark palette.
var DarkTheme = Theme{
	Name:       ThemeDark,
	Background: "#2d2d2d",
	NodeFill:   "#3d3d3d",
	NodeStroke: "#d4a574",
	Text:       "#e8e8e8",
	Line:       "#8b7355",
	LabelFill:  "#404040",
	FontFamily: "Inter, -apple-system, BlinkMacSystemFont, sans-serif",
}

// LightTheme mirrors DarkTheme on a white background.
var LightTheme = Theme{
	Name:       ThemeLight,
	Background: "#ffffff",
	NodeFill:   "#f0f0f0",
	NodeStroke: "#b8956a",
	Text:       "#1a1a1a",
	Line:       "#6b5a42",
	LabelFill:  "#e8e8e8",
	FontFamily: "Inter, -apple-system, BlinkMacSystemFont, sans-serif",
}

// ThemeByName looks up a theme.
func ThemeByName(name string) (Theme, error) {
	switch name {
	case "", ThemeDark:
		return DarkTheme, nil
	case ThemeLight:
		return LightTheme, nil
	default:
		return Theme{}, fmt.Errorf("unknown theme %q", name)
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t.Name == ThemeLight {
		return DarkTheme
	}
	return LightTheme
}
