package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// DefaultExecCommand is the mermaid-cli binary.
const DefaultExecCommand = "mmdc"

// DefaultExecTimeout bounds a single external render.
const DefaultExecTimeout = 30 * time.Second

// MaxOutputSize is the max bytes read from the renderer (8MB).
const MaxOutputSize = 8 * 1024 * 1024

// MaxConcurrentRenders limits concurrent renderer processes.
const MaxConcurrentRenders = 2

// Exec renders by shelling out to mermaid-cli, which supports the full
// mermaid grammar at the cost of a headless browser per render.
type Exec struct {
	command   string
	timeout   time.Duration
	semaphore chan struct{}

	// For testing: allow overriding command lookup and execution
	lookPath   func(string) (string, error)
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecOption configures an Exec renderer.
type ExecOption func(*Exec)

// WithExecTimeout sets the per-render timeout.
func WithExecTimeout(timeout time.Duration) ExecOption {
	return func(e *Exec) {
		e.timeout = timeout
	}
}

// NewExec creates an external renderer. An empty command uses mmdc.
func NewExec(command string, opts ...ExecOption) *Exec {
	if command == "" {
		command = DefaultExecCommand
	}
	e := &Exec{
		command:    command,
		timeout:    DefaultExecTimeout,
		semaphore:  make(chan struct{}, MaxConcurrentRenders),
		lookPath:   exec.LookPath,
		runCommand: defaultExecRunCommand,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Renderer.
func (e *Exec) Name() string { return NameExec }

// Available reports whether the command can be found.
func (e *Exec) Available() bool {
	_, err := e.lookPath(e.command)
	return err == nil
}

// Render writes source to a temp file, runs the command and reads back the SVG.
// This method is safe for concurrent use.
func (e *Exec) Render(ctx context.Context, source string, theme Theme) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}

	path, err := e.lookPath(e.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRendererUnavailable, e.command, err)
	}

	// Acquire semaphore to limit concurrent processes
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "dv-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.mmd")
	out := filepath.Join(dir, "output.svg")
	if err := os.WriteFile(in, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	output, err := e.runCommand(runCtx, path, buildExecArgs(in, out, theme)...)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("%s timed out after %s: %w", e.command, e.timeout, runCtx.Err())
		}
		return nil, &SyntaxError{Msg: firstLine(output, err)}
	}

	data, err := readLimited(out, MaxOutputSize)
	if err != nil {
		return nil, fmt.Errorf("read %s output: %w", e.command, err)
	}

	size, err := ParseSVGSize(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Source:     source,
		Theme:      theme.Name,
		SVG:        data,
		Size:       size,
		Renderer:   NameExec,
		RenderedAt: time.Now(),
		Elapsed:    time.Since(start),
	}, nil
}

func buildExecArgs(in, out string, theme Theme) []string {
	mermaidTheme := "dark"
	if theme.Name == ThemeLight {
		mermaidTheme = "neutral"
	}
	return []string{
		"--quiet",
		"-i", in,
		"-o", out,
		"-t", mermaidTheme,
		"-b", theme.Background,
	}
}

var (
	viewBoxRe = regexp.MustCompile(`viewBox\s*=\s*"\s*[-\d.eE]+[\s,]+[-\d.eE]+[\s,]+([\d.eE]+)[\s,]+([\d.eE]+)\s*"`)
	widthRe   = regexp.MustCompile(`<svg[^>]*?\swidth\s*=\s*"([\d.]+)(?:px)?"`)
	heightRe  = regexp.MustCompile(`<svg[^>]*?\sheight\s*=\s*"([\d.]+)(?:px)?"`)
)

// ParseSVGSize reads the natural size of an SVG document from its viewBox,
// falling back to absolute width and height attributes.
func ParseSVGSize(data []byte) (viewport.Size, error) {
	if m := viewBoxRe.FindSubmatch(data); m != nil {
		w, errW := strconv.ParseFloat(string(m[1]), 64)
		h, errH := strconv.ParseFloat(string(m[2]), 64)
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return viewport.Size{Width: w, Height: h}, nil
		}
	}
	mw, mh := widthRe.FindSubmatch(data), heightRe.FindSubmatch(data)
	if mw != nil && mh != nil {
		w, errW := strconv.ParseFloat(string(mw[1]), 64)
		h, errH := strconv.ParseFloat(string(mh[1]), 64)
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return viewport.Size{Width: w, Height: h}, nil
		}
	}
	return viewport.Size{}, fmt.Errorf("svg has no usable viewBox or size")
}

func firstLine(output []byte, err error) string {
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return err.Error()
}

func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

// defaultExecRunCommand runs a command and returns its combined output.
func defaultExecRunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var out bytes.Buffer
	lw := &limitedWriter{w: &out, limit: 64 * 1024}
	cmd.Stdout = lw
	cmd.Stderr = lw

	err := cmd.Run()
	return out.Bytes(), err
}

// limitedWriter wraps a writer and limits total bytes written.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil // Silently discard, return original length
	}
	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}
	written, err := lw.w.Write(toWrite)
	lw.written += written
	if err != nil {
		return written, err
	}
	return len(p), nil
}
