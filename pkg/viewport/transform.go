package viewport

import (
	"fmt"
	"math"
	"strconv"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether both dimensions are zero.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Point is a position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform is the translate+scale pair applied to rendered content.
// Pan is expressed in unscaled container pixels, so translation is applied
// first and scaling second: screen = pan + zoom*content.
type Transform struct {
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
	Zoom float64 `json:"zoom"`
}

// Identity is the transform of a freshly created viewport.
var Identity = Transform{Zoom: 1}

// Apply maps a content-space point to screen space.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.PanX + p.X*t.Zoom,
		Y: t.PanY + p.Y*t.Zoom,
	}
}

// Invert maps a screen-space point back to content space.
// A zero zoom yields the origin rather than infinities.
func (t Transform) Invert(p Point) Point {
	if t.Zoom == 0 {
		return Point{}
	}
	return Point{
		X: (p.X - t.PanX) / t.Zoom,
		Y: (p.Y - t.PanY) / t.Zoom,
	}
}

// CSS renders the transform as a CSS transform property value.
func (t Transform) CSS() string {
	return fmt.Sprintf("translate(%spx, %spx) scale(%s)", num(t.PanX), num(t.PanY), num(t.Zoom))
}

// SVG renders the transform as an SVG transform attribute value.
func (t Transform) SVG() string {
	return fmt.Sprintf("translate(%s %s) scale(%s)", num(t.PanX), num(t.PanY), num(t.Zoom))
}

// Label renders the zoom as a whole percentage, e.g. "125%".
func (t Transform) Label() string {
	return ZoomLabel(t.Zoom)
}

// ZoomLabel formats a zoom factor the way the zoom indicator displays it.
func ZoomLabel(zoom float64) string {
	return strconv.Itoa(int(math.Round(zoom*100))) + "%"
}

func num(v float64) string {
	// Trim float noise such as 299.99999999999994 before printing.
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		r = 0 // normalise -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
