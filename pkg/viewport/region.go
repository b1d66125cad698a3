package viewport

// Rect is an axis-aligned rectangle in container pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies inside the rectangle. The right and
// bottom edges are exclusive so adjacent buttons never overlap.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width &&
		y >= r.Y && y < r.Y+r.Height
}

// ControlRegion is the set of areas (zoom buttons, toolbars) where a
// pointer-down must not start a pan.
type ControlRegion []Rect

// Contains reports whether (x, y) falls in any control area.
func (cr ControlRegion) Contains(x, y float64) bool {
	for _, r := range cr {
		if r.Contains(x, y) {
			return true
		}
	}
	return false
}
