package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/surface"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// toolbarPixels is the height of the toolbar row in raster pixels.
const toolbarPixels = 2

// ToolbarAction is what a toolbar button does.
type ToolbarAction int

const (
	ActionNone ToolbarAction = iota
	ActionZoomOut
	ActionReset
	ActionZoomIn
	ActionRecenter
)

type toolbarButton struct {
	action ToolbarAction
	label  string
	col    int
}

// Toolbar is the row of zoom buttons above the preview. Its buttons form
// the control region in which a press never starts a drag.
type Toolbar struct {
	cols    int
	buttons []toolbarButton
}

// LayoutToolbar right-aligns the buttons in a row of cols cells.
func LayoutToolbar(cols int, zoomLabel string) Toolbar {
	labels := []struct {
		action ToolbarAction
		text   string
	}{
		{ActionZoomOut, "[-]"},
		{ActionReset, "[" + padLabel(zoomLabel) + "]"},
		{ActionZoomIn, "[+]"},
		{ActionRecenter, "[⟲]"},
	}

	total := len(labels) - 1
	for _, l := range labels {
		total += lipgloss.Width(l.text)
	}
	col := max(cols-total-SpaceXS, 0)

	tb := Toolbar{cols: cols}
	for _, l := range labels {
		tb.buttons = append(tb.buttons, toolbarButton{action: l.action, label: l.text, col: col})
		col += lipgloss.Width(l.text) + 1
	}
	return tb
}

// padLabel keeps the reset button a fixed width from 25% to 400%.
func padLabel(label string) string {
	for lipgloss.Width(label) < 4 {
		label = " " + label
	}
	return label
}

// Region returns the button rectangles in pane pixels.
func (tb Toolbar) Region() viewport.ControlRegion {
	region := make(viewport.ControlRegion, 0, len(tb.buttons))
	for _, b := range tb.buttons {
		region = append(region, viewport.Rect{
			X:      float64(b.col),
			Y:      0,
			Width:  float64(lipgloss.Width(b.label)),
			Height: toolbarPixels,
		})
	}
	return region
}

// ActionAt returns the button under pane pixel (px, py).
func (tb Toolbar) ActionAt(px, py float64) ToolbarAction {
	for i, r := range tb.Region() {
		if r.Contains(px, py) {
			return tb.buttons[i].action
		}
	}
	return ActionNone
}

// View renders the toolbar row.
func (tb Toolbar) View(t Theme) string {
	var sb strings.Builder
	pos := 0
	btn := t.ButtonStyle()
	for _, b := range tb.buttons {
		if b.col > pos {
			sb.WriteString(strings.Repeat(" ", b.col-pos))
			pos = b.col
		}
		sb.WriteString(btn.Render(b.label))
		pos += lipgloss.Width(b.label)
	}
	if pos < tb.cols {
		sb.WriteString(strings.Repeat(" ", tb.cols-pos))
	}
	return sb.String()
}

// PreviewPane shows the rendered diagram and turns mouse input into
// viewport gestures. One cell is one pixel wide and two pixels tall.
type PreviewPane struct {
	ctrl      *viewport.Controller
	raster    *surface.Raster
	wheelStep float64

	x, y       int
	cols, rows int
	toolbar    Toolbar
}

// NewPreviewPane creates a pane driving ctrl and drawing into raster.
func NewPreviewPane(ctrl *viewport.Controller, raster *surface.Raster, wheelStep float64) *PreviewPane {
	if wheelStep <= 0 {
		wheelStep = 0.1
	}
	return &PreviewPane{ctrl: ctrl, raster: raster, wheelStep: wheelStep}
}

// SetBounds places the pane on screen. rows includes the toolbar row.
func (p *PreviewPane) SetBounds(x, y, cols, rows int) {
	p.x, p.y = x, y
	p.cols, p.rows = max(cols, 0), max(rows, 0)
	p.raster.Resize(surface.CellPixels(p.cols, max(p.rows-1, 0)))
	p.toolbar = LayoutToolbar(p.cols, p.ctrl.Transform().Label())
}

// Container returns the size of the drawing area in pixels.
func (p *PreviewPane) Container() viewport.Size {
	w, h := surface.CellPixels(p.cols, max(p.rows-1, 0))
	return viewport.Size{Width: float64(w), Height: float64(h)}
}

// Toolbar returns the current toolbar layout.
func (p *PreviewPane) Toolbar() Toolbar {
	return p.toolbar
}

// Contains reports whether screen cell (x, y) is inside the pane.
func (p *PreviewPane) Contains(x, y int) bool {
	return x >= p.x && x < p.x+p.cols && y >= p.y && y < p.y+p.rows
}

// HandleMouse applies a mouse event. A release anywhere ends a drag. It
// reports whether the event changed or may have changed the view.
func (p *PreviewPane) HandleMouse(msg tea.MouseMsg) bool {
	px := float64(msg.X - p.x)
	py := float64((msg.Y - p.y) * 2)
	// Drawing area coordinates start below the toolbar.
	cy := py - toolbarPixels

	switch msg.Action {
	case tea.MouseActionRelease:
		if !p.ctrl.IsPanning() {
			return false
		}
		p.ctrl.StopPan()
		return true

	case tea.MouseActionMotion:
		if !p.ctrl.IsPanning() {
			return false
		}
		p.ctrl.ContinuePan(px, cy)
		return true

	case tea.MouseActionPress:
		if !p.Contains(msg.X, msg.Y) {
			return false
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			p.ctrl.ZoomAtPoint(p.wheelStep, px, cy)
			return true
		case tea.MouseButtonWheelDown:
			p.ctrl.ZoomAtPoint(-p.wheelStep, px, cy)
			return true
		case tea.MouseButtonLeft:
			if p.toolbar.Region().Contains(px, py) {
				p.Do(p.toolbar.ActionAt(px, py))
				return true
			}
			p.ctrl.StartPan(px, cy)
			return true
		}
	}
	return false
}

// Do runs a toolbar action.
func (p *PreviewPane) Do(a ToolbarAction) {
	switch a {
	case ActionZoomOut:
		p.ctrl.ZoomOut()
	case ActionZoomIn:
		p.ctrl.ZoomIn()
	case ActionReset:
		p.ctrl.ResetView()
	case ActionRecenter:
		p.ctrl.Recenter()
	}
}

// View renders the toolbar and the drawing area. A non-empty placeholder
// replaces the diagram.
func (p *PreviewPane) View(t Theme, placeholder string) string {
	if p.cols <= 0 || p.rows <= 0 {
		return ""
	}
	p.toolbar = LayoutToolbar(p.cols, p.ctrl.Transform().Label())
	top := p.toolbar.View(t)
	if p.rows == 1 {
		return top
	}

	var body string
	if placeholder != "" {
		body = t.Renderer.NewStyle().
			Width(p.cols).
			Height(p.rows-1).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(t.Subtext).
			Italic(true).
			Render(placeholder)
	} else {
		body = surface.Cells(p.raster.Image())
	}
	return top + "\n" + body
}
