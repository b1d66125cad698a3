// Package preview ties a renderer to a viewport controller.
//
// A Session holds the current source text, the last successfully rendered
// Result and the container it is shown in. It is the viewport.Host for its
// controller and also the controller's Surface and Indicator, so every
// transform change is recorded and fanned out to subscribers (the HTTP
// event stream, the terminal UI) and to any extra surfaces.
package preview

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/watcher"
)

// EventKind identifies a session event.
type EventKind string

const (
	EventRendered  EventKind = "rendered"
	EventFailed    EventKind = "failed"
	EventTransform EventKind = "transform"
)

// Event is delivered to subscribers.
type Event struct {
	Kind      EventKind          `json:"kind"`
	Err       string             `json:"error,omitempty"`
	Transform viewport.Transform `json:"transform"`
	Label     string             `json:"label"`
}

// View is a snapshot of everything a client needs to draw the preview.
type View struct {
	Transform viewport.Transform `json:"transform"`
	CSS       string             `json:"css"`
	Label     string             `json:"label"`
	Panning   bool               `json:"panning"`
	Container viewport.Size      `json:"container"`
	Content   viewport.Size      `json:"content"`
	Rendered  bool               `json:"rendered"`
	Renderer  string             `json:"renderer,omitempty"`
	Theme     string             `json:"theme"`
	Error     string             `json:"error,omitempty"`
}

const subscriberBuffer = 32

// Session is safe for concurrent use.
type Session struct {
	ctrl     *viewport.Controller
	sched    *viewport.Scheduler
	debounce *watcher.Debouncer
	renderer render.Renderer
	logger   *log.Logger
	surfaces []viewport.Surface

	ctx    context.Context
	cancel context.CancelFunc

	// cfg is only read during New.
	cfg config

	mu         sync.Mutex
	source     string
	theme      render.Theme
	result     *render.Result
	lastErr    error
	container  viewport.Size
	transform  viewport.Transform
	label      string
	renderSeq  uint64
	appliedSeq uint64
	subs       map[chan Event]struct{}
	closed     bool
}

type config struct {
	limits      viewport.Limits
	debounce    time.Duration
	centerDelay time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithRenderer sets the renderer. The default is the built-in flowchart renderer.
func WithRenderer(r render.Renderer) Option {
	return func(s *Session) {
		s.renderer = r
	}
}

// WithTheme sets the initial theme.
func WithTheme(t render.Theme) Option {
	return func(s *Session) {
		s.theme = t
	}
}

// WithLimits sets the controller zoom limits.
func WithLimits(l viewport.Limits) Option {
	return func(s *Session) {
		s.cfg.limits = l
	}
}

// WithDebounce sets how long SetSource waits for typing to stop.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.cfg.debounce = d
	}
}

// WithCenterDelay sets the settle delay used when a render reports no size.
func WithCenterDelay(d time.Duration) Option {
	return func(s *Session) {
		s.cfg.centerDelay = d
	}
}

// WithSurface adds a surface that receives every transform.
func WithSurface(surface viewport.Surface) Option {
	return func(s *Session) {
		s.surfaces = append(s.surfaces, surface)
	}
}

// WithLogger sets the logger for render failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New creates a session. Call Close to stop pending timers.
func New(opts ...Option) *Session {
	s := &Session{
		renderer:  render.NewFlow(),
		theme:     render.DarkTheme,
		logger:    log.Default(),
		transform: viewport.Identity,
		label:     viewport.ZoomLabel(1),
		subs:      make(map[chan Event]struct{}),
		cfg:       config{limits: viewport.DefaultLimits()},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.ctrl = viewport.New(
		viewport.WithLimits(s.cfg.limits),
		viewport.WithHost(s),
		viewport.WithSurface(s),
		viewport.WithIndicator(s),
	)
	s.sched = viewport.NewScheduler(s.ctrl, s.cfg.centerDelay)
	s.debounce = watcher.NewDebouncer(s.cfg.debounce)
	return s
}

// Controller returns the viewport controller input adapters drive.
func (s *Session) Controller() *viewport.Controller {
	return s.ctrl
}

// RendererName returns the name of the renderer in use.
func (s *Session) RendererName() string {
	return s.renderer.Name()
}

// Close cancels pending renders and centering and closes all subscriptions.
func (s *Session) Close() {
	s.debounce.Cancel()
	s.sched.Cancel()
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

// SetSource stores text and renders it once typing pauses.
func (s *Session) SetSource(text string) {
	s.mu.Lock()
	s.source = text
	s.mu.Unlock()

	s.debounce.Trigger(func() {
		if _, err := s.RenderNow(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Printf("render: %v", err)
		}
	})
}

// Source returns the current source text.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// RenderNow renders the current source immediately, cancelling any
// debounced render. On failure the previous content and transform are
// kept and the error is recorded.
func (s *Session) RenderNow(ctx context.Context) (*render.Result, error) {
	s.debounce.Cancel()

	s.mu.Lock()
	src, theme := s.source, s.theme
	s.renderSeq++
	seq := s.renderSeq
	s.mu.Unlock()

	res, err := s.renderer.Render(ctx, src, theme)

	s.mu.Lock()
	if seq < s.appliedSeq {
		// A newer render already landed.
		s.mu.Unlock()
		return res, err
	}
	s.appliedSeq = seq
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.publish(Event{Kind: EventFailed, Err: err.Error()})
		return nil, err
	}
	s.result = res
	s.lastErr = nil
	s.mu.Unlock()

	if res.Size.IsZero() {
		s.sched.Schedule()
	} else {
		s.sched.Cancel()
		s.ctrl.Recenter()
	}
	s.publish(Event{Kind: EventRendered})
	return res, nil
}

// SetTheme switches the theme and re-renders when there is source.
func (s *Session) SetTheme(ctx context.Context, theme render.Theme) error {
	s.mu.Lock()
	s.theme = theme
	empty := s.source == ""
	s.mu.Unlock()

	if empty {
		return nil
	}
	_, err := s.RenderNow(ctx)
	return err
}

// Theme returns the current theme.
func (s *Session) Theme() render.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Result returns the last successful render, or nil.
func (s *Session) Result() *render.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the error of the most recent render, or nil if it succeeded.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetContainer records a new container size and recenters.
func (s *Session) SetContainer(size viewport.Size) {
	s.mu.Lock()
	s.container = size
	s.mu.Unlock()

	s.ctrl.Recenter()
}

// ContainerSize implements viewport.Host.
func (s *Session) ContainerSize() viewport.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.container
}

// ContentSize implements viewport.Host.
func (s *Session) ContentSize() (viewport.Size, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return viewport.Size{}, false
	}
	return s.result.Size, true
}

// ApplyTransform implements viewport.Surface.
func (s *Session) ApplyTransform(t viewport.Transform) {
	s.mu.Lock()
	s.transform = t
	s.mu.Unlock()

	for _, surface := range s.surfaces {
		surface.ApplyTransform(t)
	}
	s.publish(Event{Kind: EventTransform, Transform: t, Label: t.Label()})
}

// SetZoomLabel implements viewport.Indicator.
func (s *Session) SetZoomLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

// View returns a snapshot of the preview.
func (s *Session) View() View {
	panning := s.ctrl.IsPanning()

	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Transform: s.transform,
		CSS:       s.transform.CSS(),
		Label:     s.label,
		Panning:   panning,
		Container: s.container,
		Theme:     s.theme.Name,
	}
	if s.result != nil {
		v.Rendered = true
		v.Content = s.result.Size
		v.Renderer = s.result.Renderer
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	return v
}

// Subscribe returns a channel of session events and a function that ends
// the subscription. Slow subscribers miss events rather than block.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Kind != EventTransform {
		ev.Transform = s.transform
		ev.Label = s.label
	}
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
