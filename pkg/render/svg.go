package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
)

const arrowSize = 8.0

// DrawSVG emits a standalone SVG document for a laid-out diagram.
func DrawSVG(d *model.Diagram, theme Theme) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("nil diagram")
	}
	var buf bytes.Buffer
	canvas := svg.New(&buf)

	w, h := px(d.Width), px(d.Height)
	canvas.Startview(w, h, 0, 0, w, h)
	canvas.Rect(0, 0, w, h, "fill:"+theme.Background)

	canvas.Gid("edges")
	for _, e := range d.Edges {
		drawEdge(canvas, e, theme)
	}
	canvas.Gend()

	canvas.Gid("nodes")
	for _, n := range d.Nodes {
		drawNode(canvas, n, theme)
	}
	canvas.Gend()

	canvas.End()
	return buf.Bytes(), nil
}

// NodeColors resolves a node's fill, stroke and text colors against theme.
func NodeColors(n model.Node, theme Theme) (fill, stroke, text string) {
	fill, stroke, text = theme.NodeFill, theme.NodeStroke, theme.Text
	if n.Style.Fill != "" {
		fill = n.Style.Fill
	}
	if n.Style.Stroke != "" {
		stroke = n.Style.Stroke
	}
	if n.Style.Color != "" {
		text = n.Style.Color
	}
	return fill, stroke, text
}

// EdgeWidth returns the stroke width for an edge kind.
func EdgeWidth(k model.EdgeKind) float64 {
	if k == model.EdgeThick {
		return 3
	}
	return 1.5
}

// ArrowHead returns the triangle for an arrow whose tip is the last point
// of pts.
func ArrowHead(pts []model.Point) [3]model.Point {
	tip := pts[len(pts)-1]
	prev := pts[len(pts)-2]
	angle := math.Atan2(tip.Y-prev.Y, tip.X-prev.X)
	spread := math.Pi / 7
	return [3]model.Point{
		tip,
		{X: tip.X - arrowSize*math.Cos(angle-spread), Y: tip.Y - arrowSize*math.Sin(angle-spread)},
		{X: tip.X - arrowSize*math.Cos(angle+spread), Y: tip.Y - arrowSize*math.Sin(angle+spread)},
	}
}

// LabelAnchor returns the midpoint of a polyline by length.
func LabelAnchor(pts []model.Point) model.Point {
	if len(pts) == 0 {
		return model.Point{}
	}
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	half := total / 2
	for i := 1; i < len(pts); i++ {
		seg := math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
		if seg >= half && seg > 0 {
			t := half / seg
			return model.Point{
				X: pts[i-1].X + (pts[i].X-pts[i-1].X)*t,
				Y: pts[i-1].Y + (pts[i].Y-pts[i-1].Y)*t,
			}
		}
		half -= seg
	}
	return pts[len(pts)-1]
}

func drawEdge(canvas *svg.SVG, e model.Edge, theme Theme) {
	if len(e.Points) < 2 {
		return
	}
	style := fmt.Sprintf("fill:none;stroke:%s;stroke-width:%g", theme.Line, EdgeWidth(e.Kind))
	if e.Kind == model.EdgeDotted {
		style += ";stroke-dasharray:4,4"
	}
	xs, ys := ints(e.Points)
	canvas.Polyline(xs, ys, style)

	if e.Kind.HasArrow() {
		head := ArrowHead(e.Points)
		hx, hy := ints(head[:])
		canvas.Polygon(hx, hy, "fill:"+theme.Line)
	}

	if e.Label != "" {
		at := LabelAnchor(e.Points)
		lw, lh := MeasureLabel(e.Label)
		lw += 8
		canvas.Rect(px(at.X-lw/2), px(at.Y-lh/2), px(lw), px(lh), "fill:"+theme.LabelFill)
		drawText(canvas, at, e.Label, theme.Text, theme)
	}
}

func drawNode(canvas *svg.SVG, n model.Node, theme Theme) {
	fill, stroke, text := NodeColors(n, theme)
	style := fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.5", fill, stroke)
	c := n.Center()

	canvas.Gid("node-" + n.ID)
	switch n.Shape {
	case model.ShapeRound:
		r := px(math.Min(n.H/2, 12))
		canvas.Roundrect(px(n.X), px(n.Y), px(n.W), px(n.H), r, r, style)
	case model.ShapeDiamond:
		canvas.Polygon(
			[]int{px(c.X), px(n.X + n.W), px(c.X), px(n.X)},
			[]int{px(n.Y), px(c.Y), px(n.Y + n.H), px(c.Y)},
			style)
	case model.ShapeCircle:
		canvas.Circle(px(c.X), px(c.Y), px(math.Min(n.W, n.H)/2), style)
	default:
		canvas.Rect(px(n.X), px(n.Y), px(n.W), px(n.H), style)
	}
	drawText(canvas, c, n.Label, text, theme)
	canvas.Gend()
}

// drawText centers a possibly multi-line label on at.
func drawText(canvas *svg.SVG, at model.Point, label, color string, theme Theme) {
	lines := strings.Split(label, "\n")
	top := at.Y - float64(len(lines)-1)*LineHeight/2
	style := fmt.Sprintf("text-anchor:middle;dominant-baseline:central;font-family:%s;font-size:%gpx;fill:%s",
		theme.FontFamily, FontSize, color)
	for i, l := range lines {
		canvas.Text(px(at.X), px(top+float64(i)*LineHeight), l, style)
	}
}

func px(v float64) int {
	return int(math.Round(v))
}

func ints(pts []model.Point) ([]int, []int) {
	xs := make([]int, len(pts))
	ys := make([]int, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = px(p.X), px(p.Y)
	}
	return xs, ys
}
