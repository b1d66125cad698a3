// Package ui is the terminal front end of dv: a source editor next to a
// live preview that can be panned with the mouse and zoomed with the wheel,
// the toolbar or the keyboard.
package ui

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/export"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/preview"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/store"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/surface"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// Store persists the scratch document and settings. *store.DB satisfies it.
type Store interface {
	SaveDocument(key, source string) error
	SetSetting(key, value string) error
}

type focus int

const (
	focusEditor focus = iota
	focusPreview
)

type overlay int

const (
	overlayNone overlay = iota
	overlayHelp
	overlaySnippets
	overlayExport
)

// Messages
type (
	sessionEventMsg struct {
		ev preview.Event
		ok bool
	}
	themeChangedMsg struct {
		theme render.Theme
		err   error
	}
	exportedMsg struct {
		path string
		err  error
	}
	// FileChangedMsg delivers new source text read from the watched file.
	FileChangedMsg struct {
		Source string
		Err    error
	}
)

// Options configures a Model.
type Options struct {
	Session *preview.Session
	// Raster must be registered as a surface of Session.
	Raster    *surface.Raster
	Store     Store
	Source    string
	WheelStep float64
	// SourcePath is the file being viewed; empty for the scratch document.
	SourcePath string
	Logger     *log.Logger
}

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	session *preview.Session
	raster  *surface.Raster
	pane    *PreviewPane
	store   Store
	logger  *log.Logger

	editor   textarea.Model
	keys     KeyMap
	theme    Theme
	help     HelpOverlayModel
	snippets SnippetPickerModel
	export   ExportFormModel

	events      <-chan preview.Event
	unsubscribe func()

	focus         focus
	overlay       overlay
	editorVisible bool
	// editorCols is the width set by dragging the split; 0 uses the default.
	editorCols    int
	resizing      bool
	sourcePath    string
	width, height int

	status    string
	statusErr bool
}

// NewModel creates the root model and subscribes to the session.
func NewModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ta := textarea.New()
	ta.Placeholder = "Enter diagram code..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.SetValue(opts.Source)
	ta.Focus()

	keys := DefaultKeyMap()
	theme := ThemeFor(opts.Session.Theme())
	events, unsubscribe := opts.Session.Subscribe()

	opts.Session.SetSource(opts.Source)

	return Model{
		ctx:           context.Background(),
		session:       opts.Session,
		raster:        opts.Raster,
		pane:          NewPreviewPane(opts.Session.Controller(), opts.Raster, opts.WheelStep),
		store:         opts.Store,
		logger:        logger,
		editor:        ta,
		keys:          keys,
		theme:         theme,
		help:          NewHelpOverlayModel(theme, keys),
		events:        events,
		unsubscribe:   unsubscribe,
		editorVisible: true,
		sourcePath:    opts.SourcePath,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForEvent(), m.renderNow())
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		return sessionEventMsg{ev: ev, ok: ok}
	}
}

func (m Model) renderNow() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		// Failures arrive as session events.
		s.RenderNow(ctx)
		return nil
	}
}

// Close releases the session subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case sessionEventMsg:
		if !msg.ok {
			return m, nil
		}
		m.handleSessionEvent(msg.ev)
		return m, m.waitForEvent()

	case themeChangedMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		}
		m.applyTheme(msg.theme)
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.setStatus("Export failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Exported "+msg.path, false)
		}
		return m, nil

	case exportDoneMsg:
		m.overlay = overlayNone
		if !m.export.Submitted() {
			return m, nil
		}
		format, path, err := m.export.Result()
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		return m, m.exportCmd(format, path)

	case FileChangedMsg:
		if msg.Err != nil {
			m.setStatus("Reload failed: "+msg.Err.Error(), true)
			return m, nil
		}
		if msg.Source != m.editor.Value() {
			m.editor.SetValue(msg.Source)
			m.session.SetSource(msg.Source)
		}
		return m, nil

	case tea.MouseMsg:
		if m.overlay != overlayNone {
			return m, nil
		}
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.overlay == overlayExport {
		var cmd tea.Cmd
		m.export, cmd = m.export.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *Model) handleSessionEvent(ev preview.Event) {
	switch ev.Kind {
	case preview.EventRendered:
		res := m.session.Result()
		if res == nil {
			return
		}
		m.raster.SetContent(res.Diagram, m.session.Theme())
		m.setStatus(fmt.Sprintf("Rendered in %s", res.Elapsed.Round(time.Millisecond)), false)
		if m.store != nil && m.sourcePath == "" {
			if err := m.store.SaveDocument(store.ScratchKey, res.Source); err != nil {
				m.logger.Printf("save scratch document: %v", err)
			}
		}
	case preview.EventFailed:
		m.setStatus(ev.Err, true)
	}
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.resizing {
		switch msg.Action {
		case tea.MouseActionMotion:
			if w := splitWidth(msg.X+1, m.width); w != m.editorWidth() {
				m.editorCols = w
				m.layout()
			}
		case tea.MouseActionRelease:
			m.resizing = false
		}
		return m, nil
	}
	if m.onSplit(msg) {
		m.resizing = true
		return m, nil
	}

	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		if m.pane.Contains(msg.X, msg.Y) {
			m.setFocus(focusPreview)
		} else if m.editorVisible && msg.X < m.editorWidth() {
			m.setFocus(focusEditor)
		}
	}
	m.pane.HandleMouse(msg)
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.overlay {
	case overlayHelp:
		m.help, _ = m.help.Update(msg)
		if !m.help.IsVisible() {
			m.overlay = overlayNone
		}
		return m, nil
	case overlaySnippets:
		var cmd tea.Cmd
		m.snippets, cmd = m.snippets.Update(msg)
		if m.snippets.Done() {
			m.overlay = overlayNone
			if s := m.snippets.Chosen(); s != nil {
				m.editor.InsertString(s.Body)
				m.session.SetSource(m.editor.Value())
				m.setFocus(focusEditor)
			}
		}
		return m, cmd
	case overlayExport:
		var cmd tea.Cmd
		m.export, cmd = m.export.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusEditor || !m.editorVisible {
			m.setFocus(focusPreview)
		} else {
			m.setFocus(focusEditor)
		}
		return m, nil
	case key.Matches(msg, m.keys.ToggleEditor):
		m.editorVisible = !m.editorVisible
		if !m.editorVisible {
			m.setFocus(focusPreview)
		}
		// The preview changes width; layout recenters through SetContainer.
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.ToggleTheme):
		return m, m.toggleTheme()
	case key.Matches(msg, m.keys.Snippets):
		m.snippets = NewSnippetPickerModel(Snippets, m.theme)
		m.snippets.SetSize(m.width, m.height)
		m.overlay = overlaySnippets
		return m, nil
	case key.Matches(msg, m.keys.Export):
		m.export = NewExportFormModel(export.FormatPNG)
		m.overlay = overlayExport
		return m, m.export.Init()
	case key.Matches(msg, m.keys.CopySource):
		m.copy("source", m.editor.Value())
		return m, nil
	}

	if m.focus == focusPreview {
		switch {
		case key.Matches(msg, m.keys.ZoomIn):
			m.pane.Do(ActionZoomIn)
		case key.Matches(msg, m.keys.ZoomOut):
			m.pane.Do(ActionZoomOut)
		case key.Matches(msg, m.keys.Reset):
			m.pane.Do(ActionReset)
		case key.Matches(msg, m.keys.Recenter):
			m.pane.Do(ActionRecenter)
		case key.Matches(msg, m.keys.CopySVG):
			m.copySVG()
		case key.Matches(msg, m.keys.Help):
			m.help.SetSize(m.width, m.height)
			m.help.Show()
			m.overlay = overlayHelp
		case key.Matches(msg, m.keys.QuitKey):
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	prev := m.editor.Value()
	m.editor, cmd = m.editor.Update(msg)
	if text := m.editor.Value(); text != prev {
		m.session.SetSource(text)
	}
	return m, cmd
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusEditor {
		m.editor.Focus()
	} else {
		m.editor.Blur()
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// minPanelCols is the narrowest either pane may be.
const minPanelCols = 20

func (m Model) editorWidth() int {
	if !m.editorVisible || m.width == 0 {
		return 0
	}
	if m.editorCols > 0 {
		return splitWidth(m.editorCols, m.width)
	}
	return splitWidth(m.width*2/5, m.width)
}

// splitWidth clamps an editor width so both panes keep minPanelCols.
func splitWidth(w, total int) int {
	return max(min(w, total-minPanelCols), minPanelCols)
}

// onSplit reports whether msg is a left press on the editor's border
// column, which starts a split drag.
func (m Model) onSplit(msg tea.MouseMsg) bool {
	ew := m.editorWidth()
	return ew > 0 &&
		msg.Action == tea.MouseActionPress &&
		msg.Button == tea.MouseButtonLeft &&
		msg.X == ew-1 &&
		msg.Y < m.height-1
}

// layout sizes the panes and reports the new preview container to the
// session, which recenters the diagram.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	bodyH := max(m.height-1, 1)
	ew := m.editorWidth()
	if ew > 0 {
		// One column for the border.
		m.editor.SetWidth(max(ew-1, 1))
		m.editor.SetHeight(bodyH)
	}
	m.pane.SetBounds(ew, 0, m.width-ew, bodyH)
	m.session.SetContainer(m.pane.Container())
}

func (m Model) toggleTheme() tea.Cmd {
	s, ctx, st, logger := m.session, m.ctx, m.store, m.logger
	next := s.Theme().Toggle()
	return func() tea.Msg {
		err := s.SetTheme(ctx, next)
		if st != nil {
			if serr := st.SetSetting(store.SettingTheme, next.Name); serr != nil {
				logger.Printf("save theme: %v", serr)
			}
		}
		return themeChangedMsg{theme: next, err: err}
	}
}

func (m *Model) applyTheme(t render.Theme) {
	m.theme = ThemeFor(t)
	m.help.SetTheme(m.theme)
	if res := m.session.Result(); res != nil {
		m.raster.SetContent(res.Diagram, t)
	} else {
		m.raster.SetContent(nil, t)
	}
}

func (m Model) exportCmd(format export.Format, path string) tea.Cmd {
	s := m.session
	text := m.editor.Value()
	return func() tea.Msg {
		var err error
		if format == export.FormatSource {
			err = export.Source(path, text)
		} else {
			err = export.WriteFile(path, s.Result(), s.Theme(), export.DefaultPNGScale)
		}
		return exportedMsg{path: path, err: err}
	}
}

func (m *Model) copy(what, text string) {
	if strings.TrimSpace(text) == "" {
		m.setStatus("Nothing to copy", true)
		return
	}
	if err := writeClipboard(text); err != nil {
		m.setStatus("Copy failed: "+err.Error(), true)
		return
	}
	m.setStatus("Copied "+what+" to clipboard", false)
}

func (m *Model) copySVG() {
	var buf bytes.Buffer
	if err := export.SVG(&buf, m.session.Result(), m.session.Theme()); err != nil {
		m.setStatus("Copy failed: "+err.Error(), true)
		return
	}
	m.copy("SVG", buf.String())
}

func (m Model) placeholder() string {
	if strings.TrimSpace(m.editor.Value()) == "" {
		return "Enter diagram code to see your diagram"
	}
	res := m.session.Result()
	switch {
	case res == nil && m.session.Err() != nil:
		return "Fix the error to see your diagram"
	case res == nil:
		return "Rendering..."
	case res.Diagram == nil:
		return fmt.Sprintf("Rendered by %s; run dv --serve to view it in a browser", res.Renderer)
	}
	return ""
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	switch m.overlay {
	case overlayHelp:
		return m.place(m.help.View())
	case overlaySnippets:
		return m.place(m.snippets.View())
	case overlayExport:
		return m.place(m.theme.Renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.theme.Border).
			Padding(1, 2).
			Render(m.export.View()))
	}

	body := m.pane.View(m.theme, m.placeholder())
	if m.editorVisible {
		ed := m.theme.PanelStyle(m.focus == focusEditor).Render(m.editor.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, ed, body)
	}
	return body + "\n" + m.statusBar()
}

func (m Model) place(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) statusBar() string {
	t := m.theme
	v := m.session.View()

	pane := "EDIT"
	if m.focus == focusPreview {
		pane = "VIEW"
	}
	left := t.Renderer.NewStyle().Bold(true).Foreground(t.Primary).Render(" "+pane) + " "
	switch {
	case m.statusErr && m.status != "":
		left += t.Renderer.NewStyle().Foreground(t.Error).Render(m.status)
	case m.status != "":
		left += t.Renderer.NewStyle().Foreground(ColorSuccess).Render(m.status)
	default:
		var hints []string
		for _, b := range m.keys.ShortHelp() {
			hints = append(hints, b.Help().Key+" "+b.Help().Desc)
		}
		left += strings.Join(hints, " • ")
	}

	right := fmt.Sprintf("%s  %s  %s ", v.Label, v.Theme, m.session.RendererName())
	if m.sourcePath != "" {
		right = m.sourcePath + "  " + right
	}
	return t.RenderStatusBar(left, right, m.width)
}
