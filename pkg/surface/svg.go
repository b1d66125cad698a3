package surface

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	svg "github.com/ajstarks/svgo"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// SVG composes a container-sized SVG frame with the rendered document
// nested inside a transformed group.
type SVG struct {
	mu         sync.Mutex
	doc        []byte
	background string
	width      int
	height     int
	transform  viewport.Transform
}

// NewSVG creates an SVG surface for a container of the given size.
func NewSVG(width, height int) *SVG {
	return &SVG{width: width, height: height, transform: viewport.Identity}
}

// ApplyTransform implements viewport.Surface.
func (s *SVG) ApplyTransform(t viewport.Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = t
}

// SetDocument replaces the nested document and the frame background.
func (s *SVG) SetDocument(doc []byte, background string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = stripProlog(doc)
	s.background = background
}

// Resize changes the frame size.
func (s *SVG) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// WriteTo writes the current frame.
func (s *SVG) WriteTo(w io.Writer) (int64, error) {
	s.mu.Lock()
	doc, bg, width, height, t := s.doc, s.background, s.width, s.height, s.transform
	s.mu.Unlock()

	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("svg frame has no size")
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	if bg != "" {
		canvas.Rect(0, 0, width, height, "fill:"+bg)
	}
	canvas.Gtransform(t.SVG())
	buf.Write(doc)
	canvas.Gend()
	canvas.End()

	return buf.WriteTo(w)
}

// stripProlog drops everything before the root <svg element so the
// document can be nested.
func stripProlog(doc []byte) []byte {
	if i := bytes.Index(doc, []byte("<svg")); i > 0 {
		return doc[i:]
	}
	return doc
}
