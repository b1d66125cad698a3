package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings of the main view.
type KeyMap struct {
	Quit         key.Binding
	Help         key.Binding
	Focus        key.Binding
	ToggleEditor key.Binding
	ToggleTheme  key.Binding
	Snippets     key.Binding
	Export       key.Binding
	CopySource   key.Binding

	// Preview pane only; in the editor these keys are text.
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Reset    key.Binding
	Recenter key.Binding
	CopySVG  key.Binding
	QuitKey  key.Binding
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:         key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Help:         key.NewBinding(key.WithKeys("?", "f1"), key.WithHelp("?", "help")),
		Focus:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		ToggleEditor: key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "toggle editor")),
		ToggleTheme:  key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "toggle theme")),
		Snippets:     key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "insert snippet")),
		Export:       key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "export")),
		CopySource:   key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy source")),

		ZoomIn:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		Reset:    key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset zoom")),
		Recenter: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "center")),
		CopySVG:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy SVG")),
		QuitKey:  key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Focus, k.ToggleEditor, k.Export, k.Help}
}
