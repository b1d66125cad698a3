package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// HelpOverlayModel shows keyboard shortcuts help
type HelpOverlayModel struct {
	visible bool
	width   int
	height  int
	theme   Theme
	keys    KeyMap
}

// NewHelpOverlayModel creates a new help overlay
func NewHelpOverlayModel(theme Theme, keys KeyMap) HelpOverlayModel {
	return HelpOverlayModel{
		theme: theme,
		keys:  keys,
	}
}

// Show makes the help overlay visible
func (m *HelpOverlayModel) Show() {
	m.visible = true
}

// Hide makes the help overlay invisible
func (m *HelpOverlayModel) Hide() {
	m.visible = false
}

// Toggle toggles visibility
func (m *HelpOverlayModel) Toggle() {
	m.visible = !m.visible
}

// IsVisible returns true if overlay is showing
func (m HelpOverlayModel) IsVisible() bool {
	return m.visible
}

// SetSize sets dimensions
func (m *HelpOverlayModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetTheme switches the palette used to frame the help.
func (m *HelpOverlayModel) SetTheme(theme Theme) {
	m.theme = theme
}

// Update handles input
func (m HelpOverlayModel) Update(msg tea.Msg) (HelpOverlayModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg.(type) {
	case tea.KeyMsg:
		// Any key closes help
		m.visible = false
	}

	return m, nil
}

// Markdown returns the help text as Markdown.
func (m HelpOverlayModel) Markdown() string {
	var b strings.Builder
	section := func(title string, bindings ...key.Binding) {
		fmt.Fprintf(&b, "## %s\n\n| Key | Action |\n| --- | --- |\n", title)
		for _, k := range bindings {
			h := k.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
		b.WriteString("\n")
	}

	b.WriteString("# dv\n\n")
	section("Anywhere", m.keys.Focus, m.keys.ToggleEditor, m.keys.ToggleTheme,
		m.keys.Snippets, m.keys.Export, m.keys.CopySource, m.keys.Quit)
	section("Preview", m.keys.ZoomIn, m.keys.ZoomOut, m.keys.Reset,
		m.keys.Recenter, m.keys.CopySVG, m.keys.Help, m.keys.QuitKey)
	b.WriteString("## Mouse\n\n")
	b.WriteString("- Drag the preview to pan.\n")
	b.WriteString("- Scroll to zoom around the pointer.\n")
	b.WriteString("- Drag the editor border to resize the panes.\n")
	b.WriteString("- `[-]` `[100%]` `[+]` `[⟲]` zoom out, reset, zoom in and center.\n")
	return b.String()
}

// View renders the help overlay
func (m HelpOverlayModel) View() string {
	if !m.visible {
		return ""
	}

	wrap := 60
	if m.width > 0 && m.width-8 < wrap {
		wrap = max(m.width-8, 20)
	}
	style := "dark"
	if m.theme.Name == "light" {
		style = "light"
	}

	body := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		if out, err := r.Render(body); err == nil {
			body = strings.TrimSpace(out)
		}
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\n")
	hintStyle := m.theme.Renderer.NewStyle().Faint(true).Italic(true)
	b.WriteString(hintStyle.Render("[Press any key to close]"))

	// Wrap in box
	boxStyle := m.theme.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Border).
		Padding(1, 2)

	return boxStyle.Render(b.String())
}
