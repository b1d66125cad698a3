package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/export"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/surface"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

func TestLayoutToolbar(t *testing.T) {
	tb := LayoutToolbar(60, "100%")
	region := tb.Region()
	if len(region) != 4 {
		t.Fatalf("got %d buttons, want 4", len(region))
	}

	last := region[len(region)-1]
	if end := last.X + last.Width; end != 59 {
		t.Errorf("toolbar ends at %v, want 59", end)
	}

	want := []ToolbarAction{ActionZoomOut, ActionReset, ActionZoomIn, ActionRecenter}
	for i, r := range region {
		if got := tb.ActionAt(r.X+r.Width/2, 1); got != want[i] {
			t.Errorf("button %d: action %v, want %v", i, got, want[i])
		}
		if i > 0 && region[i-1].X+region[i-1].Width >= r.X {
			t.Errorf("buttons %d and %d overlap", i-1, i)
		}
	}
	if got := tb.ActionAt(0, 0); got != ActionNone {
		t.Errorf("ActionAt(0,0) = %v", got)
	}
	if got := tb.ActionAt(region[0].X, 2); got != ActionNone {
		t.Errorf("below the toolbar row should miss, got %v", got)
	}

	// The reset button keeps its width across labels.
	if a, b := LayoutToolbar(60, "25%").Region()[1], LayoutToolbar(60, "400%").Region()[1]; a != b {
		t.Errorf("reset button moved: %+v vs %+v", a, b)
	}
}

func newTestPane(t *testing.T) (*PreviewPane, *viewport.Controller) {
	t.Helper()
	raster := surface.NewRaster(1, 1)
	ctrl := viewport.New(viewport.WithSurface(raster))
	pane := NewPreviewPane(ctrl, raster, 0.1)
	pane.SetBounds(10, 0, 60, 30)
	return pane, ctrl
}

func TestPreviewPane_Bounds(t *testing.T) {
	pane, _ := newTestPane(t)
	if got := pane.Container(); got != (viewport.Size{Width: 60, Height: 58}) {
		t.Errorf("Container() = %+v", got)
	}
	if w, h := pane.raster.Size(); w != 60 || h != 58 {
		t.Errorf("raster = %dx%d", w, h)
	}
	tests := []struct {
		x, y int
		want bool
	}{
		{10, 0, true},
		{69, 29, true},
		{9, 5, false},
		{70, 5, false},
		{20, 30, false},
	}
	for _, tt := range tests {
		if got := pane.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d,%d) = %v", tt.x, tt.y, got)
		}
	}
}

func TestPreviewPane_Drag(t *testing.T) {
	pane, ctrl := newTestPane(t)
	press := tea.MouseMsg{X: 30, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}

	// Motion before a press does nothing.
	if pane.HandleMouse(tea.MouseMsg{X: 40, Y: 12, Action: tea.MouseActionMotion}) {
		t.Error("motion without a drag reported a change")
	}

	pane.HandleMouse(press)
	if !ctrl.IsPanning() {
		t.Fatal("press should start a drag")
	}
	// Pane pixel (20, 20), drawing area (20, 18); anchor is pointer - pan.
	if a := ctrl.State().Anchor; a != (viewport.Point{X: 20, Y: 18}) {
		t.Errorf("anchor = %+v", a)
	}

	pane.HandleMouse(tea.MouseMsg{X: 33, Y: 11, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	pane.HandleMouse(tea.MouseMsg{X: 36, Y: 13, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	if tr := ctrl.Transform(); tr.PanX != 6 || tr.PanY != 6 {
		t.Errorf("pan = (%v, %v), want (6, 6)", tr.PanX, tr.PanY)
	}

	pane.HandleMouse(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionRelease})
	if ctrl.IsPanning() {
		t.Error("release should stop the drag")
	}
	pane.HandleMouse(tea.MouseMsg{X: 50, Y: 20, Action: tea.MouseActionMotion})
	if tr := ctrl.Transform(); tr.PanX != 6 || tr.PanY != 6 {
		t.Errorf("motion after release moved pan to (%v, %v)", tr.PanX, tr.PanY)
	}
}

func TestPreviewPane_Wheel(t *testing.T) {
	pane, ctrl := newTestPane(t)

	pane.HandleMouse(tea.MouseMsg{X: 30, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	if z := ctrl.Zoom(); !near(z, 1.1) {
		t.Fatalf("wheel up zoom = %v, want 1.1", z)
	}
	// The point under the pointer stays put: (20, 18) maps to itself.
	p := ctrl.Transform().Invert(viewport.Point{X: 20, Y: 18})
	if !near(p.X, 20) || !near(p.Y, 18) {
		t.Errorf("anchored point moved to %+v", p)
	}

	pane.HandleMouse(tea.MouseMsg{X: 30, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	if z := ctrl.Zoom(); !near(z, 1) {
		t.Errorf("wheel down zoom = %v, want 1", z)
	}

	// Wheel outside the pane is ignored.
	pane.HandleMouse(tea.MouseMsg{X: 2, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	if z := ctrl.Zoom(); !near(z, 1) {
		t.Errorf("wheel outside pane changed zoom to %v", z)
	}
}

func TestPreviewPane_ToolbarDoesNotPan(t *testing.T) {
	pane, ctrl := newTestPane(t)
	zoomIn := pane.Toolbar().Region()[2]

	click := tea.MouseMsg{
		X:      10 + int(zoomIn.X),
		Y:      0,
		Action: tea.MouseActionPress,
		Button: tea.MouseButtonLeft,
	}
	pane.HandleMouse(click)
	if ctrl.IsPanning() {
		t.Error("press on a toolbar button started a drag")
	}
	if z := ctrl.Zoom(); z != 1.25 {
		t.Errorf("zoom-in button: zoom = %v, want 1.25", z)
	}

	// The label updates, so the next layout shows 125%.
	out := pane.View(ThemeFor(render.DarkTheme), "")
	if !strings.Contains(out, "[125%]") {
		t.Errorf("toolbar label not refreshed: %q", strings.SplitN(out, "\n", 2)[0])
	}
}

func TestPreviewPane_Placeholder(t *testing.T) {
	pane, _ := newTestPane(t)
	out := pane.View(ThemeFor(render.DarkTheme), "nothing yet")
	if !strings.Contains(out, "nothing yet") || strings.Contains(out, surface.UpperHalf) {
		t.Error("placeholder should replace the diagram")
	}
}

func TestSnippets_Render(t *testing.T) {
	for _, s := range Snippets {
		if _, err := render.ParseFlowchart(s.Body); err != nil {
			t.Errorf("snippet %q does not parse: %v", s.Name, err)
		}
	}
}

func TestSnippetPicker_Filter(t *testing.T) {
	m := NewSnippetPickerModel(Snippets, ThemeFor(render.DarkTheme))
	if len(m.Filtered()) != len(Snippets) {
		t.Fatalf("empty query should list all snippets")
	}
	for _, r := range "shap" {
		m, _ = m.Update(runes(string(r)))
	}
	if f := m.Filtered(); len(f) == 0 || f[0].Name != "node shapes" {
		t.Errorf("filtered = %+v", f)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !m.Done() || m.Chosen() != nil {
		t.Error("esc should cancel without a choice")
	}
}

func TestSnippetPicker_Navigate(t *testing.T) {
	m := NewSnippetPickerModel(Snippets, ThemeFor(render.DarkTheme))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if c := m.Chosen(); c == nil || c.Name != Snippets[1].Name {
		t.Errorf("chosen = %+v, want %q", c, Snippets[1].Name)
	}
}

func TestResolveExportPath(t *testing.T) {
	tests := []struct {
		format  export.Format
		in      string
		want    string
		wantErr bool
	}{
		{export.FormatPNG, "", "diagram.png", false},
		{export.FormatSVG, "  ", "diagram.svg", false},
		{export.FormatSource, "flow", "flow.mmd", false},
		{export.FormatPNG, "out/chart", "out/chart.png", false},
		{export.FormatSVG, "chart.svg", "chart.svg", false},
		{export.FormatSource, "chart.mermaid", "chart.mermaid", false},
		{export.FormatPNG, "chart.svg", "", true},
		{export.FormatPNG, "chart.pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveExportPath(tt.format, tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ResolveExportPath(%s, %q) = %q, %v", tt.format, tt.in, got, err)
		}
	}
}

func TestExportForm_Cancel(t *testing.T) {
	m := NewExportFormModel(export.FormatSVG)
	if f, _, _ := m.Result(); f != export.FormatSVG {
		t.Errorf("preselected format = %q", f)
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should return a command")
	}
	if _, ok := cmd().(exportDoneMsg); !ok {
		t.Error("esc should finish the form")
	}
	if m.Submitted() {
		t.Error("cancelled form reported as submitted")
	}
}

func TestHelpMarkdown(t *testing.T) {
	h := NewHelpOverlayModel(ThemeFor(render.DarkTheme), DefaultKeyMap())
	md := h.Markdown()
	for _, want := range []string{"zoom in", "toggle editor", "Drag the preview"} {
		if !strings.Contains(md, want) {
			t.Errorf("help missing %q", want)
		}
	}
	if h.View() != "" {
		t.Error("hidden help should render nothing")
	}
	h.Show()
	h.SetSize(100, 40)
	if !strings.Contains(h.View(), "Press any key") {
		t.Error("visible help should render")
	}
}
