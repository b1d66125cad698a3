package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
)

// ══════════════════════════════════════════════════════════════════════════════
// DESIGN TOKENS - Consistent spacing, colors, and visual language
// ══════════════════════════════════════════════════════════════════════════════

// Spacing constants for consistent layout (in characters)
const (
	SpaceXS = 1
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Warm neutrals matching the diagram themes
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorSuccess = lipgloss.Color("#4ade80")
	ColorDanger  = lipgloss.Color("#e06c6c")
	ColorMuted   = lipgloss.Color("#8b8b8b")
)

// Theme is the terminal palette derived from a diagram theme.
type Theme struct {
	Renderer *lipgloss.Renderer

	Name      string
	Bg        lipgloss.Color
	Panel     lipgloss.Color
	Text      lipgloss.Color
	Subtext   lipgloss.Color
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Border    lipgloss.Color
	Error     lipgloss.Color
}

// ThemeFor returns the terminal palette for a diagram theme.
func ThemeFor(t render.Theme) Theme {
	th := Theme{
		Renderer:  lipgloss.DefaultRenderer(),
		Name:      t.Name,
		Bg:        lipgloss.Color(t.Background),
		Panel:     lipgloss.Color(t.NodeFill),
		Text:      lipgloss.Color(t.Text),
		Subtext:   ColorMuted,
		Primary:   lipgloss.Color(t.NodeStroke),
		Secondary: lipgloss.Color(t.Line),
		Border:    lipgloss.Color(t.LabelFill),
		Error:     ColorDanger,
	}
	if t.Name == render.ThemeLight {
		th.Subtext = lipgloss.Color("#5a5a5a")
	}
	return th
}

// ══════════════════════════════════════════════════════════════════════════════
// PANEL STYLES - For split view layouts
// ══════════════════════════════════════════════════════════════════════════════

// PanelStyle frames the editor. Only the right border is drawn so the
// preview pane starts at a fixed column.
func (t Theme) PanelStyle(focused bool) lipgloss.Style {
	border := t.Border
	if focused {
		border = t.Primary
	}
	return t.Renderer.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(border)
}

// ButtonStyle styles a toolbar button.
func (t Theme) ButtonStyle() lipgloss.Style {
	return t.Renderer.NewStyle().Foreground(t.Text).Background(t.Panel)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS BAR
// ══════════════════════════════════════════════════════════════════════════════

// RenderStatusBar lays out left and right segments across width.
func (t Theme) RenderStatusBar(left, right string, width int) string {
	bar := t.Renderer.NewStyle().Foreground(t.Subtext).Background(t.Panel)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	return bar.MaxWidth(width).MaxHeight(1).Width(width).Render(line)
}
