package render

import (
	"strings"
	"testing"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
)

func TestDrawSVG(t *testing.T) {
	d := mustLayout(t, `flowchart LR
	A[Build] -->|ok| B((Ship))
	A -.-> C{Q & A}
	style B fill:#112233,color:#ffffff`)

	out, err := DrawSVG(d, LightTheme)
	if err != nil {
		t.Fatalf("DrawSVG: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		"<svg",
		`viewBox="0 0 `,
		"fill:" + LightTheme.Background,
		`id="node-A"`,
		"<circle",
		"<polygon",
		"stroke-dasharray:4,4",
		"fill:#112233",
		">ok</text>",
		"Q &amp; A",
		"</svg>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
}

func TestDrawSVG_SizeRoundTrip(t *testing.T) {
	d := mustLayout(t, sampleFlow)
	out, err := DrawSVG(d, DarkTheme)
	if err != nil {
		t.Fatalf("DrawSVG: %v", err)
	}
	size, err := ParseSVGSize(out)
	if err != nil {
		t.Fatalf("ParseSVGSize: %v", err)
	}
	if size.Width != float64(px(d.Width)) || size.Height != float64(px(d.Height)) {
		t.Errorf("size = %+v, want %vx%v", size, px(d.Width), px(d.Height))
	}
}

func TestDrawSVG_Nil(t *testing.T) {
	if _, err := DrawSVG(nil, DarkTheme); err == nil {
		t.Error("DrawSVG(nil) should fail")
	}
}

func TestNodeColors(t *testing.T) {
	n := model.Node{Style: model.Style{Stroke: "#f00"}}
	fill, stroke, text := NodeColors(n, DarkTheme)
	if fill != DarkTheme.NodeFill || stroke != "#f00" || text != DarkTheme.Text {
		t.Errorf("NodeColors = %s %s %s", fill, stroke, text)
	}
}

func TestLabelAnchor(t *testing.T) {
	pts := []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 30}}
	got := LabelAnchor(pts)
	if got.X != 10 || got.Y != 10 {
		t.Errorf("LabelAnchor = %+v, want (10,10)", got)
	}
	if got := LabelAnchor(nil); got != (model.Point{}) {
		t.Errorf("LabelAnchor(nil) = %+v", got)
	}
}

func TestArrowHead(t *testing.T) {
	head := ArrowHead([]model.Point{{X: 0, Y: 0}, {X: 0, Y: 100}})
	if head[0] != (model.Point{X: 0, Y: 100}) {
		t.Errorf("tip = %+v", head[0])
	}
	for _, p := range head[1:] {
		if p.Y >= 100 {
			t.Errorf("barb %+v should trail the tip", p)
		}
	}
}
