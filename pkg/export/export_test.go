package export

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
)

func renderTest(t *testing.T) *render.Result {
	t.Helper()
	res, err := render.NewFlow().Render(context.Background(), testSource, render.DarkTheme)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return res
}

func TestPNG_Scale(t *testing.T) {
	res := renderTest(t)

	tests := []struct {
		scale float64
		want  float64
	}{
		{0, DefaultPNGScale},
		{1, 1},
		{3, 3},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := PNG(&buf, res.Diagram, render.DarkTheme, tt.scale); err != nil {
			t.Fatalf("PNG(scale=%v): %v", tt.scale, err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		wantW := int(res.Diagram.Width*tt.want + 0.5)
		if got := img.Bounds().Dx(); got != wantW {
			t.Errorf("scale %v: width %d, want %d", tt.scale, got, wantW)
		}
	}
}

func TestPNG_NoDiagram(t *testing.T) {
	for _, d := range []*model.Diagram{nil, {}} {
		if err := PNG(&bytes.Buffer{}, d, render.DarkTheme, 2); !errors.Is(err, ErrNoDiagram) {
			t.Errorf("PNG(%v) err = %v, want ErrNoDiagram", d, err)
		}
	}
}

func TestSVG_Standalone(t *testing.T) {
	res := &render.Result{SVG: []byte(`<?xml version="1.0"?><svg width="10" height="10"><text>hi</text></svg>`)}
	var buf bytes.Buffer
	if err := SVG(&buf, res, render.DarkTheme); err != nil {
		t.Fatalf("SVG: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" width="10"`) {
		t.Errorf("namespace not added to root: %s", out)
	}
	if !strings.Contains(out, `height="10"><style>text { font-family: Inter`) {
		t.Errorf("font style should be the first child: %s", out)
	}

	// An existing namespace is left alone.
	res.SVG = []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	buf.Reset()
	if err := SVG(&buf, res, render.DarkTheme); err != nil {
		t.Fatalf("SVG: %v", err)
	}
	if n := strings.Count(buf.String(), "xmlns="); n != 1 {
		t.Errorf("xmlns count = %d, want 1", n)
	}
}

func TestSVG_Errors(t *testing.T) {
	if err := SVG(&bytes.Buffer{}, nil, render.DarkTheme); !errors.Is(err, ErrNoDiagram) {
		t.Errorf("nil result: %v", err)
	}
	if err := SVG(&bytes.Buffer{}, &render.Result{SVG: []byte("<html/>")}, render.DarkTheme); err == nil {
		t.Error("non-svg output should fail")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"out.png", FormatPNG, false},
		{"OUT.SVG", FormatSVG, false},
		{"dir/diagram.mmd", FormatSource, false},
		{"flow.mermaid", FormatSource, false},
		{"report.pdf", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v", tt.path, got, err)
		}
	}
	for _, f := range Formats {
		if got, _ := FormatFromPath(f.DefaultName()); got != f {
			t.Errorf("default name %q maps to %q", f.DefaultName(), got)
		}
	}
}

func TestWriteFile(t *testing.T) {
	res := renderTest(t)
	dir := t.TempDir()

	for _, name := range []string{"a.png", "a.svg", "a.mmd"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, res, render.DarkTheme, 2); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, "a.mmd"))
	if string(data) != testSource {
		t.Errorf("source export = %q", data)
	}

	external := &render.Result{Source: testSource, SVG: res.SVG}
	if err := WriteFile(filepath.Join(dir, "b.png"), external, render.DarkTheme, 2); !errors.Is(err, ErrNoDiagram) {
		t.Errorf("png without scene: %v, want ErrNoDiagram", err)
	}
	if err := WriteFile(filepath.Join(dir, "c.svg"), nil, render.DarkTheme, 2); !errors.Is(err, ErrNoDiagram) {
		t.Errorf("nil result: %v, want ErrNoDiagram", err)
	}
	if err := Source(filepath.Join(dir, "d.mmd"), "  "); !errors.Is(err, ErrNoDiagram) {
		t.Errorf("blank source: %v, want ErrNoDiagram", err)
	}
}

func TestOpenInBrowser(t *testing.T) {
	var got []string
	orig := openCommand
	openCommand = func(name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}
	defer func() { openCommand = orig }()

	if err := OpenInBrowser("http://localhost:9000"); err != nil {
		t.Skipf("no browser opener on this platform: %v", err)
	}
	if len(got) == 0 || got[len(got)-1] != "http://localhost:9000" {
		t.Errorf("opener called with %q", got)
	}
}
