// Package viewport implements the pan/zoom engine of the diagram preview.
//
// A Controller owns a single State (zoom factor, pan offset, drag gate) and
// turns discrete actions (zoom buttons, keys) and continuous gestures (drag,
// wheel) into a clamped Transform. Rendering surfaces never read the state
// directly; the controller pushes every new Transform to a Surface and every
// new zoom label to an Indicator.
package viewport

import (
	"math"
	"sync"
)

// Default zoom limits used when no Limits are configured.
const (
	MinZoom  = 0.25
	MaxZoom  = 4.0
	ZoomStep = 0.25
)

// Limits bounds the zoom factor and sets the discrete zoom step.
type Limits struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// DefaultLimits returns the stock zoom range [0.25, 4] with a 0.25 step.
func DefaultLimits() Limits {
	return Limits{Min: MinZoom, Max: MaxZoom, Step: ZoomStep}
}

// Clamp restricts z to [Min, Max].
func (l Limits) Clamp(z float64) float64 {
	return math.Max(l.Min, math.Min(l.Max, z))
}

// valid reports whether the limits describe a usable range.
func (l Limits) valid() bool {
	return l.Min > 0 && l.Max >= l.Min && l.Step > 0 &&
		!math.IsInf(l.Max, 0) && !math.IsNaN(l.Min) && !math.IsNaN(l.Max)
}

// Surface receives every transform the controller computes.
// Implementations must not call back into the Controller.
type Surface interface {
	ApplyTransform(t Transform)
}

// Indicator displays the current zoom percentage.
type Indicator interface {
	SetZoomLabel(label string)
}

// Host exposes the container the content is shown in.
// ContentSize reports false when nothing has been rendered yet.
type Host interface {
	ContainerSize() Size
	ContentSize() (Size, bool)
}

// State is a snapshot of the viewport.
type State struct {
	Zoom    float64 `json:"zoom"`
	PanX    float64 `json:"pan_x"`
	PanY    float64 `json:"pan_y"`
	Panning bool    `json:"panning"`
	// Anchor is the pan offset relative to the pointer at drag start.
	Anchor Point `json:"anchor"`
}

// Transform returns the transform described by the state.
func (s State) Transform() Transform {
	return Transform{PanX: s.PanX, PanY: s.PanY, Zoom: s.Zoom}
}

// Controller maps user input to a consistent viewport transform.
// It is safe for concurrent use. Sinks are called without mu held, and
// receive updates in the order the state changed.
type Controller struct {
	mu     sync.Mutex
	state  State
	limits Limits

	// sinkMu is taken before mu is released so sink calls keep state order.
	sinkMu sync.Mutex

	surface   Surface
	indicator Indicator
	host      Host
}

// Option configures a Controller.
type Option func(*Controller)

// WithLimits overrides the zoom range and step. Invalid limits are ignored.
func WithLimits(l Limits) Option {
	return func(c *Controller) {
		if l.valid() {
			c.limits = l
		}
	}
}

// WithSurface sets the sink that receives transforms.
func WithSurface(s Surface) Option {
	return func(c *Controller) {
		c.surface = s
	}
}

// WithIndicator sets the sink that receives zoom labels.
func WithIndicator(i Indicator) Option {
	return func(c *Controller) {
		c.indicator = i
	}
}

// WithHost sets the container used by Recenter and ResetView.
func WithHost(h Host) Option {
	return func(c *Controller) {
		c.host = h
	}
}

// New creates a controller at zoom 1 with no pan.
func New(opts ...Option) *Controller {
	c := &Controller{
		state:  State{Zoom: 1},
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Zoom = c.limits.Clamp(c.state.Zoom)
	return c
}

// Limits returns the configured zoom limits.
func (c *Controller) Limits() Limits {
	return c.limits
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transform returns the current transform.
func (c *Controller) Transform() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Transform()
}

// Zoom returns the current zoom factor.
func (c *Controller) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Zoom
}

// IsPanning reports whether a drag is in progress.
func (c *Controller) IsPanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Panning
}

// SetZoom clamps z into range and stores it. With recenter set, the content
// is re-centered against the host and the transform applied; callers that
// adjust pan themselves pass false.
func (c *Controller) SetZoom(z float64, recenter bool) {
	c.mu.Lock()
	c.setZoomLocked(z)
	if recenter {
		c.mu.Unlock()
		c.Recenter()
		return
	}
	c.emitLocked(c.state.Transform(), false)
}

// setZoomLocked must be called with c.mu held.
func (c *Controller) setZoomLocked(z float64) {
	if math.IsNaN(z) {
		return
	}
	c.state.Zoom = c.limits.Clamp(z)
}

// ZoomIn steps the zoom up by one discrete step and re-centers.
func (c *Controller) ZoomIn() {
	c.SetZoom(c.Zoom()+c.limits.Step, true)
}

// ZoomOut steps the zoom down by one discrete step and re-centers.
func (c *Controller) ZoomOut() {
	c.SetZoom(c.Zoom()-c.limits.Step, true)
}

// ZoomAtPoint changes the zoom by delta while keeping the content point
// under (px, py) fixed on screen. Ignored during a drag.
func (c *Controller) ZoomAtPoint(delta, px, py float64) {
	if !finite(delta, px, py) {
		return
	}

	c.mu.Lock()
	if c.state.Panning {
		c.mu.Unlock()
		return
	}
	prev := c.state.Zoom
	c.setZoomLocked(prev + delta)
	k := c.state.Zoom / prev
	c.state.PanX = px - (px-c.state.PanX)*k
	c.state.PanY = py - (py-c.state.PanY)*k
	c.emitLocked(c.state.Transform(), true)
}

// StartPan begins a drag at (px, py). Callers filter out pointer-downs that
// land on controls before calling it.
func (c *Controller) StartPan(px, py float64) {
	if !finite(px, py) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Panning = true
	c.state.Anchor = Point{X: px - c.state.PanX, Y: py - c.state.PanY}
}

// ContinuePan moves the content with the pointer. It does nothing unless a
// drag is in progress.
func (c *Controller) ContinuePan(px, py float64) {
	if !finite(px, py) {
		return
	}

	c.mu.Lock()
	if !c.state.Panning {
		c.mu.Unlock()
		return
	}
	c.state.PanX = px - c.state.Anchor.X
	c.state.PanY = py - c.state.Anchor.Y
	t := c.state.Transform()

	c.sinkMu.Lock()
	c.mu.Unlock()
	defer c.sinkMu.Unlock()
	c.apply(t)
}

// StopPan ends a drag. Safe to call when no drag is active.
func (c *Controller) StopPan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Panning = false
}

// ResetView returns to zoom 1 and centers the content. A drag in progress
// is abandoned.
func (c *Controller) ResetView() {
	c.mu.Lock()
	c.state.Panning = false
	c.state.Zoom = c.limits.Clamp(1)
	c.mu.Unlock()

	c.Recenter()
}

// Recenter centers the host's content in the host's container. Without a
// host the current transform is simply re-applied.
func (c *Controller) Recenter() {
	if c.host == nil {
		c.mu.Lock()
		c.emitLocked(c.state.Transform(), true)
		return
	}
	content, _ := c.host.ContentSize()
	c.CenterContent(c.host.ContainerSize(), content)
}

// CenterContent places content of natural size content in the middle of
// container at the current zoom. During a drag the pan is left alone and
// the current transform is re-applied, so a zoom change still reaches the
// surface.
func (c *Controller) CenterContent(container, content Size) {
	container = sanitize(container)
	content = sanitize(content)

	c.mu.Lock()
	if !c.state.Panning {
		z := c.state.Zoom
		c.state.PanX = (container.Width - content.Width/z) / 2
		c.state.PanY = (container.Height - content.Height/z) / 2
	}
	c.emitLocked(c.state.Transform(), true)
}

// emitLocked must be called with c.mu held; it releases it. The label is
// always shown, the transform only when apply is set.
func (c *Controller) emitLocked(t Transform, apply bool) {
	c.sinkMu.Lock()
	c.mu.Unlock()
	defer c.sinkMu.Unlock()

	c.showLabel(t.Label())
	if apply {
		c.apply(t)
	}
}

func (c *Controller) apply(t Transform) {
	if c.surface != nil {
		c.surface.ApplyTransform(t)
	}
}

func (c *Controller) showLabel(label string) {
	if c.indicator != nil {
		c.indicator.SetZoomLabel(label)
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// sanitize replaces non-finite or negative dimensions with zero.
func sanitize(s Size) Size {
	if !finite(s.Width) || s.Width < 0 {
		s.Width = 0
	}
	if !finite(s.Height) || s.Height < 0 {
		s.Height = 0
	}
	return s
}
