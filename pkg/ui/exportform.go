package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/export"
)

// exportDoneMsg is sent when the export form is submitted or cancelled.
type exportDoneMsg struct{}

// exportChoice lives on the heap so the form's value pointers survive
// model copies.
type exportChoice struct {
	format string
	path   string
}

// ExportFormModel asks for an export format and file name.
type ExportFormModel struct {
	form   *huh.Form
	choice *exportChoice
}

// NewExportFormModel builds the form. format preselects a format.
func NewExportFormModel(format export.Format) ExportFormModel {
	if format == "" {
		format = export.FormatPNG
	}
	choice := &exportChoice{format: string(format)}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Export as").
				Options(
					huh.NewOption("PNG image (2x)", string(export.FormatPNG)),
					huh.NewOption("SVG image", string(export.FormatSVG)),
					huh.NewOption("Diagram source (.mmd)", string(export.FormatSource)),
				).
				Value(&choice.format),
			huh.NewInput().
				Title("File").
				Placeholder("blank for diagram.<ext>").
				Value(&choice.path).
				Validate(func(s string) error {
					_, err := ResolveExportPath(export.Format(choice.format), s)
					return err
				}),
		),
	).WithShowHelp(false)

	done := func() tea.Msg { return exportDoneMsg{} }
	form.SubmitCmd = done
	form.CancelCmd = done

	return ExportFormModel{form: form, choice: choice}
}

// Init implements tea.Model
func (m ExportFormModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards input to the form. Esc cancels.
func (m ExportFormModel) Update(msg tea.Msg) (ExportFormModel, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.form.State = huh.StateAborted
		return m, func() tea.Msg { return exportDoneMsg{} }
	}
	model, cmd := m.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		m.form = f
	}
	return m, cmd
}

// Submitted reports whether the user completed the form.
func (m ExportFormModel) Submitted() bool {
	return m.form.State == huh.StateCompleted
}

// Result returns the chosen format and destination path.
func (m ExportFormModel) Result() (export.Format, string, error) {
	f := export.Format(m.choice.format)
	path, err := ResolveExportPath(f, m.choice.path)
	return f, path, err
}

// View renders the form
func (m ExportFormModel) View() string {
	return m.form.View()
}

// ResolveExportPath turns the typed file name into a destination for
// format. A blank name uses the format's default name and a name without an
// extension gets one. An extension for a different format is an error.
func ResolveExportPath(format export.Format, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return format.DefaultName(), nil
	}
	if filepath.Ext(path) == "" {
		return path + filepath.Ext(format.DefaultName()), nil
	}
	got, err := export.FormatFromPath(path)
	if err != nil {
		return "", err
	}
	if got != format {
		return "", fmt.Errorf("%s is a %s file, not %s", filepath.Base(path), got, format)
	}
	return path, nil
}
