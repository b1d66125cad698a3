package surface

import "github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"

// Multi fans a transform out to several surfaces in order.
type Multi []viewport.Surface

// ApplyTransform implements viewport.Surface.
func (m Multi) ApplyTransform(t viewport.Transform) {
	for _, s := range m {
		if s != nil {
			s.ApplyTransform(t)
		}
	}
}
