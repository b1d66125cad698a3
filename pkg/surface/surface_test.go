package surface

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

func boxDiagram() *model.Diagram {
	return &model.Diagram{
		Direction: model.DirTopDown,
		Width:     60,
		Height:    40,
		Nodes: []model.Node{{
			ID: "A", Shape: model.ShapeRect,
			X: 10, Y: 10, W: 40, H: 20,
			Style: model.Style{Fill: "#ff0000", Stroke: "#ff0000"},
		}},
	}
}

func TestRaster_AppliesTransform(t *testing.T) {
	r := NewRaster(120, 80)
	r.SetContent(boxDiagram(), render.DarkTheme)

	img := r.Image()
	if got := hex(img.At(30, 20)); got != "#ff0000" {
		t.Errorf("identity: pixel (30,20) = %s, want node fill", got)
	}
	if got := hex(img.At(100, 70)); got != render.DarkTheme.Background {
		t.Errorf("identity: pixel (100,70) = %s, want background", got)
	}

	// translate (5,5) then scale 2: node covers x 25..105, y 25..65.
	r.ApplyTransform(viewport.Transform{PanX: 5, PanY: 5, Zoom: 2})
	img = r.Image()
	if got := hex(img.At(95, 60)); got != "#ff0000" {
		t.Errorf("zoomed: pixel (95,60) = %s, want node fill", got)
	}
	if got := hex(img.At(20, 20)); got != render.DarkTheme.Background {
		t.Errorf("zoomed: pixel (20,20) = %s, want background", got)
	}
}

func TestRaster_EmptyAndResize(t *testing.T) {
	r := NewRaster(0, -3)
	if w, h := r.Size(); w != 1 || h != 1 {
		t.Errorf("Size = %dx%d, want clamped to 1x1", w, h)
	}
	r.Resize(10, 6)
	img := r.Image()
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 6 {
		t.Errorf("bounds = %v", b)
	}
	if got := hex(img.At(5, 3)); got != render.DarkTheme.Background {
		t.Errorf("empty raster pixel = %s, want background", got)
	}
}

func TestRaster_RendersFlowchart(t *testing.T) {
	res, err := render.NewFlow().Render(t.Context(), "flowchart LR\nA[one] -->|x| B((two))\nA -.-> C{three}", render.LightTheme)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	r := NewRaster(int(res.Size.Width), int(res.Size.Height))
	r.SetContent(res.Diagram, render.LightTheme)
	img := r.Image()

	n := res.Diagram.Nodes[0]
	if got := hex(img.At(int(n.X)+3, int(n.Y)+3)); got != render.LightTheme.NodeFill {
		t.Errorf("node interior = %s, want %s", got, render.LightTheme.NodeFill)
	}
}

func TestCells(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	for x := 0; x < 4; x++ {
		img.Set(x, 0, red)
		img.Set(x, 1, blue)
		img.Set(x, 2, red)
	}

	out := Cells(img)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2 (3 pixel rows)", len(lines))
	}
	for i, l := range lines {
		if got := ansi.Strip(l); got != strings.Repeat(UpperHalf, 4) {
			t.Errorf("row %d = %q, want 4 half blocks", i, got)
		}
	}
}

func TestCellPixels(t *testing.T) {
	if w, h := CellPixels(80, 24); w != 80 || h != 48 {
		t.Errorf("CellPixels = %dx%d, want 80x48", w, h)
	}
}

func TestSVG_Frame(t *testing.T) {
	s := NewSVG(200, 100)
	s.SetDocument([]byte(`<?xml version="1.0"?>
<!-- Generated by SVGo -->
<svg width="10" height="10"><rect/></svg>`), "#2d2d2d")
	s.ApplyTransform(viewport.Transform{PanX: 12, PanY: 8, Zoom: 1.5})

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`width="200"`,
		`transform="translate(12 8) scale(1.5)"`,
		`<svg width="10" height="10"><rect/></svg>`,
		"fill:#2d2d2d",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("frame missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "<?xml") != 1 {
		t.Error("nested prolog should be stripped")
	}
}

func TestSVG_NoSize(t *testing.T) {
	s := NewSVG(0, 0)
	if _, err := s.WriteTo(&bytes.Buffer{}); err == nil {
		t.Error("WriteTo should fail without a size")
	}
}

type countSurface struct{ n int }

func (c *countSurface) ApplyTransform(viewport.Transform) { c.n++ }

func TestMulti(t *testing.T) {
	a, b := &countSurface{}, &countSurface{}
	m := Multi{a, nil, b}
	m.ApplyTransform(viewport.Identity)
	m.ApplyTransform(viewport.Identity)
	if a.n != 2 || b.n != 2 {
		t.Errorf("counts = %d, %d; want 2, 2", a.n, b.n)
	}
}
