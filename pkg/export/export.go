// Package export writes rendered diagrams to PNG, SVG and source files and
// serves the live preview over HTTP.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.sr.ht/~sbinet/gg"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/surface"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// ErrNoDiagram is returned when there is nothing rendered to export.
var ErrNoDiagram = errors.New("no diagram to export")

// DefaultPNGScale renders PNGs at twice the natural size.
const DefaultPNGScale = 2.0

// Default export file names.
const (
	DefaultPNGName    = "diagram.png"
	DefaultSVGName    = "diagram.svg"
	DefaultSourceName = "diagram.mmd"
)

// Format is an export file format.
type Format string

const (
	FormatPNG    Format = "png"
	FormatSVG    Format = "svg"
	FormatSource Format = "mmd"
)

// Formats lists the supported formats in menu order.
var Formats = []Format{FormatPNG, FormatSVG, FormatSource}

// DefaultName returns the default file name for f.
func (f Format) DefaultName() string {
	switch f {
	case FormatPNG:
		return DefaultPNGName
	case FormatSVG:
		return DefaultSVGName
	default:
		return DefaultSourceName
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".svg":
		return FormatSVG, nil
	case ".mmd", ".mermaid":
		return FormatSource, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want .png, .svg or .mmd)", filepath.Ext(path))
	}
}

// PNG rasterizes d at scale times its natural size.
func PNG(w io.Writer, d *model.Diagram, theme render.Theme, scale float64) error {
	if d == nil || len(d.Nodes) == 0 {
		return ErrNoDiagram
	}
	if scale <= 0 {
		scale = DefaultPNGScale
	}

	dc := gg.NewContext(int(d.Width*scale+0.5), int(d.Height*scale+0.5))
	dc.SetHexColor(theme.Background)
	dc.Clear()
	surface.DrawDiagram(dc, d, theme, viewport.Transform{Zoom: scale})

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

const svgNamespace = "http://www.w3.org/2000/svg"

var svgOpenRe = regexp.MustCompile(`<svg\b[^>]*>`)

// SVG writes res as a standalone document: the root declares the SVG
// namespace and embeds the text font so it renders the same outside dv.
func SVG(w io.Writer, res *render.Result, theme render.Theme) error {
	if res == nil || len(res.SVG) == 0 {
		return ErrNoDiagram
	}
	doc := res.SVG

	loc := svgOpenRe.FindIndex(doc)
	if loc == nil {
		return fmt.Errorf("rendered output has no <svg> root")
	}
	open := doc[loc[0]:loc[1]]
	if !bytes.Contains(open, []byte("xmlns=")) {
		open = append([]byte(`<svg xmlns="`+svgNamespace+`"`), open[len("<svg"):]...)
	}

	var buf bytes.Buffer
	buf.Write(doc[:loc[0]])
	buf.Write(open)
	fmt.Fprintf(&buf, "<style>text { font-family: %s; }</style>", theme.FontFamily)
	buf.Write(doc[loc[1]:])

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// Source writes the diagram source to path.
func Source(path, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNoDiagram
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	return nil
}

// WriteFile exports res to path in the format given by the extension.
func WriteFile(path string, res *render.Result, theme render.Theme, scale float64) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrNoDiagram
	}
	if format == FormatSource {
		return Source(path, res.Source)
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if res.Diagram == nil {
			return fmt.Errorf("png export needs the built-in renderer: %w", ErrNoDiagram)
		}
		err = PNG(&buf, res.Diagram, theme, scale)
	case FormatSVG:
		err = SVG(&buf, res, theme)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}
