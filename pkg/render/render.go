// Package render turns diagram source text into rendered content.
//
// Renderers are black boxes to the rest of dv: text goes in, and either a
// Result with known pixel dimensions or an error comes out. The viewport
// only ever centers on a successful Result.
package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// ErrEmptySource is returned when there is nothing to render.
var ErrEmptySource = errors.New("empty diagram source")

// ErrRendererUnavailable is returned when an external renderer is missing.
var ErrRendererUnavailable = errors.New("renderer not available")

// SyntaxError describes a problem in the diagram source.
type SyntaxError struct {
	Line int // 1-based; 0 when unknown
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error on line %d: %s", e.Line, e.Msg)
	}
	return "syntax error: " + e.Msg
}

// Result is one successful render.
type Result struct {
	Source string
	Theme  string
	// SVG is a standalone SVG document.
	SVG []byte
	// Size is the natural (unscaled) size of the content.
	Size viewport.Size
	// Diagram is the laid-out scene. External renderers leave it nil.
	Diagram    *model.Diagram
	Renderer   string
	RenderedAt time.Time
	Elapsed    time.Duration
}

// Renderer renders diagram source.
type Renderer interface {
	Name() string
	Render(ctx context.Context, source string, theme Theme) (*Result, error)
}

// Names of the available renderers.
const (
	NameBuiltin = "builtin"
	NameExec    = "exec"
)

// Options selects and configures a renderer.
type Options struct {
	Name    string
	Command string
	Timeout time.Duration
}

// New returns the renderer named by opts.Name.
func New(opts Options) (Renderer, error) {
	switch strings.ToLower(opts.Name) {
	case "", NameBuiltin:
		return NewFlow(), nil
	case NameExec:
		var eopts []ExecOption
		if opts.Timeout > 0 {
			eopts = append(eopts, WithExecTimeout(opts.Timeout))
		}
		return NewExec(opts.Command, eopts...), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", opts.Name)
	}
}

// IsSyntaxError reports whether err carries a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}
