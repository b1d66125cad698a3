package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

// Snippet is a diagram template that can be inserted into the editor.
type Snippet struct {
	Name string
	Body string
}

// Snippets are the built-in templates.
var Snippets = []Snippet{
	{"flowchart top-down", "flowchart TD\n    A[Start] --> B[End]\n"},
	{"flowchart left-right", "flowchart LR\n    A[Input] --> B[Process] --> C[Output]\n"},
	{"decision", "flowchart TD\n    A[Request] --> B{Valid?}\n    B -->|yes| C[Accept]\n    B -->|no| D[Reject]\n"},
	{"retry loop", "flowchart TD\n    A[Try] --> B{Succeeded?}\n    B -->|no| A\n    B -->|yes| C((Done))\n"},
	{"edge styles", "flowchart LR\n    A --> B\n    B --- C\n    C -.-> D\n    D ==> E\n"},
	{"node shapes", "flowchart LR\n    A[rect] --> B(round)\n    B --> C([stadium])\n    C --> D{diamond}\n    D --> E((circle))\n"},
	{"styled node", "flowchart TD\n    A[Highlighted] --> B[Plain]\n    style A fill:#2d2d2d,stroke:#4ade80,color:#e8e8e8\n"},
}

// SnippetPickerModel is a fuzzy-filtered list of snippets.
type SnippetPickerModel struct {
	all      []Snippet
	filtered []Snippet
	input    textinput.Model
	selected int
	width    int
	theme    Theme

	chosen    *Snippet
	cancelled bool
}

// NewSnippetPickerModel creates a picker over snippets.
func NewSnippetPickerModel(snippets []Snippet, theme Theme) SnippetPickerModel {
	ti := textinput.New()
	ti.Placeholder = "Search snippets..."
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	return SnippetPickerModel{
		all:      snippets,
		filtered: snippets,
		input:    ti,
		theme:    theme,
	}
}

// Update handles input
func (m SnippetPickerModel) Update(msg tea.Msg) (SnippetPickerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc", "ctrl+c":
			m.cancelled = true
			return m, nil
		case "enter":
			if len(m.filtered) > 0 {
				s := m.filtered[m.selected]
				m.chosen = &s
			} else {
				m.cancelled = true
			}
			return m, nil
		case "up", "ctrl+k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "ctrl+j":
			if m.selected < len(m.filtered)-1 {
				m.selected++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	prev := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != prev {
		m.filter()
	}
	return m, cmd
}

func (m *SnippetPickerModel) filter() {
	query := strings.TrimSpace(m.input.Value())
	m.selected = 0
	if query == "" {
		m.filtered = m.all
		return
	}

	names := make([]string, len(m.all))
	for i, s := range m.all {
		names[i] = s.Name
	}
	matches := fuzzy.Find(query, names)
	m.filtered = make([]Snippet, 0, len(matches))
	for _, match := range matches {
		m.filtered = append(m.filtered, m.all[match.Index])
	}
}

// Chosen returns the picked snippet, or nil.
func (m SnippetPickerModel) Chosen() *Snippet {
	return m.chosen
}

// Done reports whether the picker has finished.
func (m SnippetPickerModel) Done() bool {
	return m.chosen != nil || m.cancelled
}

// Filtered returns the snippets matching the query.
func (m SnippetPickerModel) Filtered() []Snippet {
	return m.filtered
}

// SetSize sets the available width.
func (m *SnippetPickerModel) SetSize(width, height int) {
	m.width = width
}

// View renders the picker
func (m SnippetPickerModel) View() string {
	t := m.theme
	boxWidth := 50
	if m.width > 0 && m.width-10 < boxWidth {
		boxWidth = max(m.width-10, 30)
	}

	var b strings.Builder
	b.WriteString(t.Renderer.NewStyle().Bold(true).Foreground(t.Primary).Render("Insert snippet"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	itemStyle := t.Renderer.NewStyle().Foreground(t.Text)
	selStyle := t.Renderer.NewStyle().Foreground(t.Bg).Background(t.Primary).Bold(true)
	if len(m.filtered) == 0 {
		b.WriteString(t.Renderer.NewStyle().Foreground(t.Subtext).Italic(true).Render("No matches"))
	}
	for i, s := range m.filtered {
		if i == m.selected {
			b.WriteString(selStyle.Render("> " + s.Name))
		} else {
			b.WriteString(itemStyle.Render("  " + s.Name))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(t.Renderer.NewStyle().Faint(true).Render("[Enter] Insert  [Esc] Cancel"))

	return t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(1, 2).
		Width(boxWidth).
		Render(b.String())
}
