// Package surface contains the viewport.Surface implementations that turn
// a transform into pixels: a gg raster, terminal half-block cells and a
// transformed SVG frame.
package surface

import (
	"image"
	"math"
	"strings"
	"sync"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// minLabelZoom is the zoom below which the fixed-size bitmap labels would
// overflow their nodes and are skipped.
const minLabelZoom = 0.5

// Raster draws a diagram into an RGBA image at the current transform.
type Raster struct {
	mu        sync.Mutex
	width     int
	height    int
	diagram   *model.Diagram
	theme     render.Theme
	transform viewport.Transform
}

// NewRaster creates a raster surface of the given pixel size.
func NewRaster(width, height int) *Raster {
	return &Raster{
		width:     max(width, 1),
		height:    max(height, 1),
		theme:     render.DarkTheme,
		transform: viewport.Identity,
	}
}

// ApplyTransform implements viewport.Surface.
func (r *Raster) ApplyTransform(t viewport.Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transform = t
}

// Transform returns the last applied transform.
func (r *Raster) Transform() viewport.Transform {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transform
}

// SetContent replaces the diagram and theme. A nil diagram draws only the
// background.
func (r *Raster) SetContent(d *model.Diagram, theme render.Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagram = d
	r.theme = theme
}

// Resize changes the image size.
func (r *Raster) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width = max(width, 1)
	r.height = max(height, 1)
}

// Size returns the image size in pixels.
func (r *Raster) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Image draws the current frame.
func (r *Raster) Image() image.Image {
	r.mu.Lock()
	w, h, d, theme, t := r.width, r.height, r.diagram, r.theme, r.transform
	r.mu.Unlock()

	dc := gg.NewContext(w, h)
	dc.SetHexColor(theme.Background)
	dc.Clear()
	if d != nil {
		DrawDiagram(dc, d, theme, t)
	}
	return dc.Image()
}

// DrawDiagram draws d onto dc with t applied: translate, then scale.
func DrawDiagram(dc *gg.Context, d *model.Diagram, theme render.Theme, t viewport.Transform) {
	dc.Push()
	dc.Translate(t.PanX, t.PanY)
	dc.Scale(t.Zoom, t.Zoom)

	for _, e := range d.Edges {
		drawEdge(dc, e, theme)
	}
	for _, n := range d.Nodes {
		drawNodeShape(dc, n, theme)
	}
	dc.Pop()

	if t.Zoom < minLabelZoom {
		return
	}

	// Labels are placed in screen space so the bitmap face stays crisp.
	dc.SetFontFace(basicfont.Face7x13)
	for _, e := range d.Edges {
		if e.Label == "" || len(e.Points) < 2 {
			continue
		}
		at := render.LabelAnchor(e.Points)
		lw, lh := render.MeasureLabel(e.Label)
		lw += 8
		tl := t.Apply(viewport.Point{X: at.X - lw/2, Y: at.Y - lh/2})
		dc.SetHexColor(theme.LabelFill)
		dc.DrawRectangle(tl.X, tl.Y, lw*t.Zoom, lh*t.Zoom)
		dc.Fill()
		drawLabel(dc, e.Label, t.Apply(viewport.Point{X: at.X, Y: at.Y}), theme.Text)
	}
	for _, n := range d.Nodes {
		_, _, text := render.NodeColors(n, theme)
		c := n.Center()
		drawLabel(dc, n.Label, t.Apply(viewport.Point{X: c.X, Y: c.Y}), text)
	}
}

func drawEdge(dc *gg.Context, e model.Edge, theme render.Theme) {
	if len(e.Points) < 2 {
		return
	}
	dc.SetHexColor(theme.Line)
	dc.SetLineWidth(render.EdgeWidth(e.Kind))
	if e.Kind == model.EdgeDotted {
		dc.SetDash(4, 4)
	}
	dc.MoveTo(e.Points[0].X, e.Points[0].Y)
	for _, p := range e.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
	dc.SetDash()

	if e.Kind.HasArrow() {
		head := render.ArrowHead(e.Points)
		dc.MoveTo(head[0].X, head[0].Y)
		dc.LineTo(head[1].X, head[1].Y)
		dc.LineTo(head[2].X, head[2].Y)
		dc.ClosePath()
		dc.Fill()
	}
}

func drawNodeShape(dc *gg.Context, n model.Node, theme render.Theme) {
	fill, stroke, _ := render.NodeColors(n, theme)
	c := n.Center()

	switch n.Shape {
	case model.ShapeRound:
		dc.DrawRoundedRectangle(n.X, n.Y, n.W, n.H, math.Min(n.H/2, 12))
	case model.ShapeDiamond:
		dc.MoveTo(c.X, n.Y)
		dc.LineTo(n.X+n.W, c.Y)
		dc.LineTo(c.X, n.Y+n.H)
		dc.LineTo(n.X, c.Y)
		dc.ClosePath()
	case model.ShapeCircle:
		dc.DrawCircle(c.X, c.Y, math.Min(n.W, n.H)/2)
	default:
		dc.DrawRectangle(n.X, n.Y, n.W, n.H)
	}
	dc.SetHexColor(fill)
	dc.FillPreserve()
	dc.SetHexColor(stroke)
	dc.SetLineWidth(1.5)
	dc.Stroke()
}

func drawLabel(dc *gg.Context, label string, at viewport.Point, color string) {
	dc.SetHexColor(color)
	lines := strings.Split(label, "\n")
	top := at.Y - float64(len(lines)-1)*render.LineHeight/2
	for i, l := range lines {
		dc.DrawStringAnchored(l, at.X, top+float64(i)*render.LineHeight, 0.5, 0.35)
	}
}
