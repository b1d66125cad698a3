package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
)

// Flow is the built-in renderer for flowchart sources:
//
//	flowchart TD
//	    A[Start] --> B{Choose}
//	    B -->|yes| C(Done)
//	    style A fill:#2d2d2d,stroke:#d4a574
type Flow struct{}

// NewFlow creates the built-in flowchart renderer.
func NewFlow() *Flow {
	return &Flow{}
}

// Name implements Renderer.
func (f *Flow) Name() string { return NameBuiltin }

// Render parses, lays out and draws source.
func (f *Flow) Render(ctx context.Context, source string, theme Theme) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}

	g, err := ParseFlowchart(source)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := Layout(g)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	svg, err := DrawSVG(d, theme)
	if err != nil {
		return nil, fmt.Errorf("draw svg: %w", err)
	}

	return &Result{
		Source:     source,
		Theme:      theme.Name,
		SVG:        svg,
		Size:       viewport.Size{Width: d.Width, Height: d.Height},
		Diagram:    d,
		Renderer:   NameBuiltin,
		RenderedAt: time.Now(),
		Elapsed:    time.Since(start),
	}, nil
}

// Graph is a parsed flowchart before layout.
type Graph struct {
	Direction model.Direction
	Nodes     []GraphNode
	Edges     []GraphEdge
}

// GraphNode is a node as declared in the source.
type GraphNode struct {
	ID    string
	Label string
	Shape model.Shape
	Style model.Style
}

// GraphEdge is an edge as declared in the source.
type GraphEdge struct {
	From, To string
	Label    string
	Kind     model.EdgeKind
}

var (
	headerRe = regexp.MustCompile(`^(flowchart|graph)(?:\s+(TD|TB|BT|LR|RL))?$`)
	edgeRe   = regexp.MustCompile(`^(-\.+->|-\.+-|={2,}>|={3,}|-{2,}>|-{3,})`)
	idRe     = regexp.MustCompile(`^[A-Za-z0-9_]+`)
	brRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// ignored statements parse but do not affect the flat layout.
var ignoredKeywords = map[string]bool{
	"subgraph":  true,
	"end":       true,
	"direction": true,
	"classDef":  true,
	"class":     true,
	"linkStyle": true,
	"click":     true,
}

type flowParser struct {
	g     *Graph
	index map[string]int
}

// ParseFlowchart parses flowchart source into a Graph.
func ParseFlowchart(source string) (*Graph, error) {
	p := &flowParser{
		g:     &Graph{},
		index: make(map[string]int),
	}

	headerSeen := false
	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		line := stripComment(raw)
		if line == "" {
			continue
		}

		if !headerSeen {
			header, rest, _ := strings.Cut(line, ";")
			m := headerRe.FindStringSubmatch(strings.TrimSpace(header))
			if m == nil {
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("expected \"flowchart\" or \"graph\" header, got %q", line)}
			}
			dir := model.Direction(m[2])
			if dir == "" || dir == "TB" {
				dir = model.DirTopDown
			}
			p.g.Direction = dir
			headerSeen = true
			line = rest
		}

		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if err := p.statement(stmt); err != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
			}
		}
	}

	if !headerSeen {
		return nil, ErrEmptySource
	}
	return p.g, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "%%"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func (p *flowParser) statement(stmt string) error {
	keyword := stmt
	if i := strings.IndexAny(stmt, " \t"); i >= 0 {
		keyword = stmt[:i]
	}
	if keyword == "style" {
		return p.style(strings.TrimSpace(stmt[len(keyword):]))
	}
	if ignoredKeywords[keyword] {
		return nil
	}
	return p.chain(stmt)
}

// style handles "style ID fill:#fff,stroke:#000,color:#111".
func (p *flowParser) style(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return fmt.Errorf("style needs a node id and properties")
	}
	id := fields[0]
	n := p.node(id)
	for _, prop := range strings.Split(strings.Join(fields[1:], ""), ",") {
		k, v, ok := strings.Cut(prop, ":")
		if !ok {
			return fmt.Errorf("malformed style property %q", prop)
		}
		switch strings.TrimSpace(k) {
		case "fill":
			n.Style.Fill = strings.TrimSpace(v)
		case "stroke":
			n.Style.Stroke = strings.TrimSpace(v)
		case "color":
			n.Style.Color = strings.TrimSpace(v)
		}
	}
	return nil
}

// chain handles "A[x] --> B --> C{y}" and "A -->|label| B".
func (p *flowParser) chain(stmt string) error {
	rest := stmt
	from, rest, err := p.nodeRef(rest)
	if err != nil {
		return err
	}

	for {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			return nil
		}

		op := edgeRe.FindString(rest)
		if op == "" {
			return fmt.Errorf("unexpected %q", truncate(rest, 20))
		}
		rest = strings.TrimLeft(rest[len(op):], " \t")

		label := ""
		if strings.HasPrefix(rest, "|") {
			end := strings.Index(rest[1:], "|")
			if end < 0 {
				return fmt.Errorf("unterminated edge label")
			}
			label = cleanLabel(rest[1 : end+1])
			rest = strings.TrimLeft(rest[end+2:], " \t")
		}

		if rest == "" {
			return fmt.Errorf("expected node after %q", op)
		}
		var to string
		to, rest, err = p.nodeRef(rest)
		if err != nil {
			return err
		}

		p.g.Edges = append(p.g.Edges, GraphEdge{
			From:  from,
			To:    to,
			Label: label,
			Kind:  edgeKind(op),
		})
		from = to
	}
}

func edgeKind(op string) model.EdgeKind {
	switch {
	case strings.Contains(op, "."):
		if strings.HasSuffix(op, ">") {
			return model.EdgeDotted
		}
		return model.EdgeOpen
	case strings.HasPrefix(op, "="):
		return model.EdgeThick
	case strings.HasSuffix(op, ">"):
		return model.EdgeSolid
	default:
		return model.EdgeOpen
	}
}

// shape delimiters, longest first so "((" wins over "(".
var shapeDelims = []struct {
	open, close string
	shape       model.Shape
}{
	{"((", "))", model.ShapeCircle},
	{"([", "])", model.ShapeRound},
	{"[", "]", model.ShapeRect},
	{"(", ")", model.ShapeRound},
	{"{", "}", model.ShapeDiamond},
}

// nodeRef parses "ID" optionally followed by a shaped label and returns the
// node ID and the unconsumed input.
func (p *flowParser) nodeRef(s string) (string, string, error) {
	s = strings.TrimLeft(s, " \t")
	id := idRe.FindString(s)
	if id == "" {
		return "", s, fmt.Errorf("expected node id, got %q", truncate(s, 20))
	}
	s = s[len(id):]

	for _, d := range shapeDelims {
		if !strings.HasPrefix(s, d.open) {
			continue
		}
		body := s[len(d.open):]
		end := strings.Index(body, d.close)
		if end < 0 {
			return "", s, fmt.Errorf("unterminated %q for node %s", d.open, id)
		}
		n := p.node(id)
		n.Label = cleanLabel(body[:end])
		n.Shape = d.shape
		return id, body[end+len(d.close):], nil
	}

	p.node(id)
	return id, s, nil
}

// node returns the node with id, declaring it on first use.
func (p *flowParser) node(id string) *GraphNode {
	if i, ok := p.index[id]; ok {
		return &p.g.Nodes[i]
	}
	p.index[id] = len(p.g.Nodes)
	p.g.Nodes = append(p.g.Nodes, GraphNode{ID: id, Label: id, Shape: model.ShapeRect})
	return &p.g.Nodes[len(p.g.Nodes)-1]
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = s[1 : len(s)-1]
	}
	return brRe.ReplaceAllString(s, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
