package export

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/preview"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/surface"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

//go:embed assets/index.html
var indexHTML []byte

// DefaultPreviewPort is the default port for the preview server.
const DefaultPreviewPort = 9000

// PreviewPortRange defines the range of ports to try if default is unavailable.
const PreviewPortRangeStart = 9000
const PreviewPortRangeEnd = 9100

// DefaultWheelStep is the zoom change per wheel notch.
const DefaultWheelStep = 0.1

// MaxSourceSize bounds POST /api/source bodies (1MB).
const MaxSourceSize = 1024 * 1024

// PreviewServer serves the live preview of a session. The browser page only
// forwards pointer, wheel and toolbar input; all pan and zoom math runs in
// the session's controller and the resulting transform comes back over an
// event stream.
type PreviewServer struct {
	session   *preview.Session
	port      int
	wheelStep float64
	logger    *log.Logger
	quiet     bool
	onSource  func(string)

	// inputMu serializes Apply; lastSeq is the newest input seen per client.
	inputMu sync.Mutex
	lastSeq map[string]uint64

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	started  time.Time
}

// PreviewOption configures a PreviewServer.
type PreviewOption func(*PreviewServer)

// WithWheelStep sets the zoom change per wheel notch.
func WithWheelStep(step float64) PreviewOption {
	return func(p *PreviewServer) {
		if step > 0 {
			p.wheelStep = step
		}
	}
}

// WithPreviewLogger sets the logger for request errors.
func WithPreviewLogger(l *log.Logger) PreviewOption {
	return func(p *PreviewServer) {
		p.logger = l
	}
}

// WithQuiet suppresses status messages on stdout.
func WithQuiet(quiet bool) PreviewOption {
	return func(p *PreviewServer) {
		p.quiet = quiet
	}
}

// WithSourceHook is called with every source text posted by a client.
func WithSourceHook(fn func(string)) PreviewOption {
	return func(p *PreviewServer) {
		p.onSource = fn
	}
}

// NewPreviewServer creates a preview server for session. Port 0 selects a
// free port in the preview range when the server starts.
func NewPreviewServer(session *preview.Session, port int, opts ...PreviewOption) *PreviewServer {
	p := &PreviewServer{
		session:   session,
		port:      port,
		wheelStep: DefaultWheelStep,
		logger:    log.Default(),
		lastSeq:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handler returns the HTTP handler with all preview routes.
func (p *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", p.indexHandler)
	mux.HandleFunc("GET /api/diagram.svg", p.diagramHandler)
	mux.HandleFunc("GET /api/frame.svg", p.frameHandler)
	mux.HandleFunc("GET /api/diagram.png", p.pngHandler)
	mux.HandleFunc("GET /api/view", p.viewHandler)
	mux.HandleFunc("POST /api/input", p.inputHandler)
	mux.HandleFunc("GET /api/source", p.getSourceHandler)
	mux.HandleFunc("POST /api/source", p.postSourceHandler)
	mux.HandleFunc("GET /api/events", p.eventsHandler)
	mux.HandleFunc("GET /__preview__/status", p.statusHandler)
	return noCacheMiddleware(mux)
}

// Listen binds the server's port, auto-selecting one if the port is 0.
func (p *PreviewServer) Listen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener != nil {
		return nil
	}

	port := p.port
	if port == 0 {
		var err error
		port, err = FindAvailablePort(PreviewPortRangeStart, PreviewPortRangeEnd)
		if err != nil {
			return fmt.Errorf("could not find available port: %w", err)
		}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}
	p.listener = ln
	p.port = ln.Addr().(*net.TCPAddr).Port
	return nil
}

// Serve runs the server until ctx is cancelled, then shuts it down.
func (p *PreviewServer) Serve(ctx context.Context) error {
	if err := p.Listen(); err != nil {
		return err
	}

	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	p.mu.Lock()
	p.server = &http.Server{
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	p.server.RegisterOnShutdown(cancelStreams)
	p.started = time.Now()
	srv, ln := p.server, p.listener
	p.mu.Unlock()

	if !p.quiet {
		fmt.Printf("\nPreview server running at %s\n", p.URL())
		fmt.Println("Press Ctrl+C to stop")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		if !p.quiet {
			fmt.Println("\nShutting down preview server...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// StartWithGracefulShutdown serves until SIGINT or SIGTERM.
func (p *PreviewServer) StartWithGracefulShutdown() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return p.Serve(ctx)
}

// Stop gracefully stops the preview server.
func (p *PreviewServer) Stop() error {
	p.mu.Lock()
	srv := p.server
	p.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Port returns the port the server is running on.
func (p *PreviewServer) Port() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}

// URL returns the full URL of the preview server.
func (p *PreviewServer) URL() string {
	return fmt.Sprintf("http://localhost:%d", p.Port())
}

// OpenBrowserAfter opens the page after delay, printing the URL if that fails.
func (p *PreviewServer) OpenBrowserAfter(delay time.Duration) {
	go func() {
		time.Sleep(delay)
		if err := OpenInBrowser(p.URL()); err != nil && !p.quiet {
			fmt.Printf("Could not open browser: %v\n", err)
			fmt.Printf("Open %s in your browser\n", p.URL())
		}
	}()
}

func (p *PreviewServer) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (p *PreviewServer) diagramHandler(w http.ResponseWriter, r *http.Request) {
	res := p.session.Result()
	if res == nil || len(res.SVG) == 0 {
		http.Error(w, ErrNoDiagram.Error(), http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := SVG(&buf, res, p.session.Theme()); err != nil {
		p.internalError(w, "diagram svg", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	buf.WriteTo(w)
}

// frameHandler composes the container-sized frame on the server, for
// clients that cannot apply the transform themselves.
func (p *PreviewServer) frameHandler(w http.ResponseWriter, r *http.Request) {
	res := p.session.Result()
	if res == nil || len(res.SVG) == 0 {
		http.Error(w, ErrNoDiagram.Error(), http.StatusNotFound)
		return
	}
	view := p.session.View()
	frame := surface.NewSVG(int(math.Round(view.Container.Width)), int(math.Round(view.Container.Height)))
	frame.SetDocument(res.SVG, p.session.Theme().Background)
	frame.ApplyTransform(view.Transform)

	var buf bytes.Buffer
	if _, err := frame.WriteTo(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	buf.WriteTo(w)
}

func (p *PreviewServer) pngHandler(w http.ResponseWriter, r *http.Request) {
	res := p.session.Result()
	if res == nil || res.Diagram == nil {
		http.Error(w, ErrNoDiagram.Error(), http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := PNG(&buf, res.Diagram, p.session.Theme(), DefaultPNGScale); err != nil {
		p.internalError(w, "diagram png", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+DefaultPNGName+`"`)
	buf.WriteTo(w)
}

func (p *PreviewServer) viewHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.session.View())
}

// Input is one pointer, wheel, toolbar or resize action from a client.
// Coordinates are in container pixels. Clients number their inputs with Seq
// under a Client id; an input older than one already applied for the same
// client is dropped. Seq 0 is applied unconditionally.
type Input struct {
	Client string  `json:"client,omitempty"`
	Seq    uint64  `json:"seq,omitempty"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"delta_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Input types.
const (
	InputDown     = "down"
	InputMove     = "move"
	InputUp       = "up"
	InputWheel    = "wheel"
	InputZoomIn   = "zoom-in"
	InputZoomOut  = "zoom-out"
	InputReset    = "reset"
	InputRecenter = "recenter"
	InputResize   = "resize"
)

// maxInputClients bounds the per-client sequence table.
const maxInputClients = 64

// Apply dispatches in to the session's controller, one input at a time.
func (p *PreviewServer) Apply(in Input) error {
	p.inputMu.Lock()
	defer p.inputMu.Unlock()

	if in.Seq != 0 {
		if last, ok := p.lastSeq[in.Client]; ok && in.Seq <= last {
			return nil
		}
		if _, ok := p.lastSeq[in.Client]; !ok && len(p.lastSeq) >= maxInputClients {
			clear(p.lastSeq)
		}
		p.lastSeq[in.Client] = in.Seq
	}

	ctrl := p.session.Controller()
	switch in.Type {
	case InputDown:
		ctrl.StartPan(in.X, in.Y)
	case InputMove:
		ctrl.ContinuePan(in.X, in.Y)
	case InputUp:
		ctrl.StopPan()
	case InputWheel:
		switch {
		case in.DeltaY < 0:
			ctrl.ZoomAtPoint(p.wheelStep, in.X, in.Y)
		case in.DeltaY > 0:
			ctrl.ZoomAtPoint(-p.wheelStep, in.X, in.Y)
		}
	case InputZoomIn:
		ctrl.ZoomIn()
	case InputZoomOut:
		ctrl.ZoomOut()
	case InputReset:
		ctrl.ResetView()
	case InputRecenter:
		ctrl.Recenter()
	case InputResize:
		p.session.SetContainer(viewport.Size{Width: in.Width, Height: in.Height})
	default:
		return fmt.Errorf("unknown input type %q", in.Type)
	}
	return nil
}

func (p *PreviewServer) inputHandler(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&in); err != nil {
		http.Error(w, "invalid input: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := p.Apply(in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, p.session.View())
}

func (p *PreviewServer) getSourceHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, p.session.Source())
}

// postSourceHandler replaces the source. With ?now=1 it renders before
// responding; otherwise the render is debounced like typing.
func (p *PreviewServer) postSourceHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxSourceSize+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > MaxSourceSize {
		http.Error(w, "source too large", http.StatusRequestEntityTooLarge)
		return
	}

	text := string(body)
	p.session.SetSource(text)
	if p.onSource != nil {
		p.onSource(text)
	}

	if r.URL.Query().Get("now") == "1" {
		if _, err := p.session.RenderNow(r.Context()); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, p.session.View())
			return
		}
	}
	writeJSON(w, http.StatusAccepted, p.session.View())
}

// eventsHandler streams session events as server-sent events.
func (p *PreviewServer) eventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := p.session.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "view", p.session.View()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, string(ev.Kind), ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// statusHandler returns the preview server status as JSON.
func (p *PreviewServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	view := p.session.View()
	status := struct {
		Status   string `json:"status"`
		Port     int    `json:"port"`
		Rendered bool   `json:"rendered"`
		Renderer string `json:"renderer,omitempty"`
		Error    string `json:"error,omitempty"`
		Uptime   string `json:"uptime,omitempty"`
	}{
		Status:   "running",
		Port:     p.Port(),
		Rendered: view.Rendered,
		Renderer: view.Renderer,
		Error:    view.Error,
	}
	if !started.IsZero() {
		status.Uptime = time.Since(started).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, status)
}

func (p *PreviewServer) internalError(w http.ResponseWriter, what string, err error) {
	p.logger.Printf("preview: %s: %v", what, err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// noCacheMiddleware adds headers to prevent browser caching.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set no-cache headers
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		// Add CORS headers for development
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// FindAvailablePort finds an available port in the given range.
func FindAvailablePort(start, end int) (int, error) {
	for port := start; port <= end; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port in range %d-%d", start, end)
}

// PreviewConfig configures the preview server.
type PreviewConfig struct {
	// Port is the port to serve on (0 for auto-select)
	Port int

	// OpenBrowser determines whether to auto-open a browser
	OpenBrowser bool

	// Quiet suppresses status messages
	Quiet bool

	// WheelStep is the zoom change per wheel notch
	WheelStep float64
}

// DefaultPreviewConfig returns sensible defaults for preview configuration.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Port:        0, // Auto-select
		OpenBrowser: true,
		Quiet:       false,
		WheelStep:   DefaultWheelStep,
	}
}

// NewPreviewServerWithConfig creates a server from config.
func NewPreviewServerWithConfig(session *preview.Session, config PreviewConfig, opts ...PreviewOption) *PreviewServer {
	opts = append([]PreviewOption{
		WithQuiet(config.Quiet),
		WithWheelStep(config.WheelStep),
	}, opts...)
	return NewPreviewServer(session, config.Port, opts...)
}
