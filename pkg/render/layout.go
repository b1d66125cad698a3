package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/model"
)

// Layout metrics in diagram pixels. CharWidth and LineHeight match the
// 7x13 bitmap face used by the raster surface so labels fit in both.
const (
	CharWidth  = 7.0
	LineHeight = 16.0
	FontSize   = 13.0

	nodePadX  = 16.0
	nodePadY  = 10.0
	minNodeW  = 60.0
	rankSep   = 50.0
	nodeSep   = 30.0
	margin    = 20.0
	loopReach = 24.0

	barycenterPasses = 4
)

// MeasureLabel returns the pixel size of a possibly multi-line label.
func MeasureLabel(label string) (w, h float64) {
	lines := strings.Split(label, "\n")
	maxCells := 0
	for _, l := range lines {
		if c := runewidth.StringWidth(l); c > maxCells {
			maxCells = c
		}
	}
	return float64(maxCells) * CharWidth, float64(len(lines)) * LineHeight
}

func nodeSize(n GraphNode) (w, h float64) {
	tw, th := MeasureLabel(n.Label)
	w = math.Max(tw+2*nodePadX, minNodeW)
	h = th + 2*nodePadY
	switch n.Shape {
	case model.ShapeDiamond:
		// Square rhombus with half-diagonal (tw+th)/2 holds the label box.
		s := math.Max(tw+th+2*nodePadY, minNodeW)
		w, h = s, s
	case model.ShapeCircle:
		d := math.Max(tw, th) + 2*nodePadX
		w, h = d, d
	}
	return w, h
}

// Layout assigns layers and coordinates to a parsed graph.
//
// Nodes are layered by longest path over a topological order; cycles are
// broken by ignoring back edges found by a depth-first walk in declaration
// order. Within a layer nodes are ordered by a few barycenter sweeps.
func Layout(g *Graph) (*model.Diagram, error) {
	dir := g.Direction
	if dir == "" {
		dir = model.DirTopDown
	}
	if !dir.IsValid() {
		return nil, fmt.Errorf("invalid direction %q", dir)
	}

	d := &model.Diagram{Direction: dir}
	if len(g.Nodes) == 0 {
		d.Width, d.Height = 2*margin, 2*margin
		return d, nil
	}

	index := make(map[string]int64, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = int64(i)
	}

	layers, err := assignLayers(g, index)
	if err != nil {
		return nil, err
	}

	order := orderLayers(g, index, layers)

	d.Nodes = make([]model.Node, len(g.Nodes))
	for i, n := range g.Nodes {
		w, h := nodeSize(n)
		d.Nodes[i] = model.Node{
			ID:    n.ID,
			Label: n.Label,
			Shape: n.Shape,
			W:     w,
			H:     h,
			Style: n.Style,
			Layer: layers[i],
		}
	}

	place(d, order)

	d.Edges = make([]model.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		from := &d.Nodes[index[e.From]]
		to := &d.Nodes[index[e.To]]
		d.Edges = append(d.Edges, model.Edge{
			From:   e.From,
			To:     e.To,
			Label:  e.Label,
			Kind:   e.Kind,
			Points: route(*from, *to, dir),
		})
	}

	return d, d.Validate()
}

// assignLayers returns the layer of each node, indexed like g.Nodes.
func assignLayers(g *Graph, index map[string]int64) ([]int, error) {
	succ := make([][]int64, len(g.Nodes))
	for _, e := range g.Edges {
		f, t := index[e.From], index[e.To]
		if f != t {
			succ[f] = append(succ[f], t)
		}
	}
	back := backEdges(succ)

	dg := simple.NewDirectedGraph()
	for i := range g.Nodes {
		dg.AddNode(simple.Node(int64(i)))
	}
	for f, ts := range succ {
		for _, t := range ts {
			if back[[2]int64{int64(f), t}] || dg.HasEdgeFromTo(int64(f), t) {
				continue
			}
			dg.SetEdge(simple.Edge{F: simple.Node(int64(f)), T: simple.Node(t)})
		}
	}

	sorted, err := topo.Sort(dg)
	if err != nil {
		return nil, fmt.Errorf("topological sort: %w", err)
	}

	layers := make([]int, len(g.Nodes))
	for _, n := range sorted {
		id := n.ID()
		to := dg.To(id)
		for to.Next() {
			if l := layers[to.Node().ID()] + 1; l > layers[id] {
				layers[id] = l
			}
		}
	}
	return layers, nil
}

// backEdges walks the graph depth-first in declaration order and returns
// the edges that close a cycle.
func backEdges(succ [][]int64) map[[2]int64]bool {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(succ))
	back := make(map[[2]int64]bool)

	var visit func(int64)
	visit = func(n int64) {
		state[n] = onStack
		for _, t := range succ[n] {
			switch state[t] {
			case unvisited:
				visit(t)
			case onStack:
				back[[2]int64{n, t}] = true
			}
		}
		state[n] = done
	}
	for i := range succ {
		if state[i] == unvisited {
			visit(int64(i))
		}
	}
	return back
}

// orderLayers groups node indices by layer and orders each layer.
func orderLayers(g *Graph, index map[string]int64, layers []int) [][]int {
	maxLayer := 0
	for _, l := range layers {
		if l > maxLayer {
			maxLayer = l
		}
	}
	order := make([][]int, maxLayer+1)
	for i, l := range layers {
		order[l] = append(order[l], i)
	}

	up := make([][]int, len(g.Nodes))
	down := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		f, t := int(index[e.From]), int(index[e.To])
		if f == t {
			continue
		}
		down[f] = append(down[f], t)
		up[t] = append(up[t], f)
	}

	pos := make([]float64, len(g.Nodes))
	setPos := func() {
		for _, layer := range order {
			for p, n := range layer {
				pos[n] = float64(p)
			}
		}
	}
	setPos()

	sweep := func(layer []int, neighbors [][]int) {
		bary := make(map[int]float64, len(layer))
		for _, n := range layer {
			if len(neighbors[n]) == 0 {
				bary[n] = pos[n]
				continue
			}
			sum := 0.0
			for _, m := range neighbors[n] {
				sum += pos[m]
			}
			bary[n] = sum / float64(len(neighbors[n]))
		}
		sort.SliceStable(layer, func(i, j int) bool {
			return bary[layer[i]] < bary[layer[j]]
		})
		for p, n := range layer {
			pos[n] = float64(p)
		}
	}

	for pass := 0; pass < barycenterPasses; pass++ {
		if pass%2 == 0 {
			for l := 1; l < len(order); l++ {
				sweep(order[l], up)
			}
		} else {
			for l := len(order) - 2; l >= 0; l-- {
				sweep(order[l], down)
			}
		}
	}
	return order
}

// place computes node positions and the diagram size. Layers advance along
// the main axis (down for TD); nodes in a layer spread along the cross axis
// and each layer is centered on the widest one.
func place(d *model.Diagram, order [][]int) {
	horizontal := d.Direction.Horizontal()
	mainOf := func(n *model.Node) float64 {
		if horizontal {
			return n.W
		}
		return n.H
	}
	crossOf := func(n *model.Node) float64 {
		if horizontal {
			return n.H
		}
		return n.W
	}

	spans := make([]float64, len(order))
	thick := make([]float64, len(order))
	widest := 0.0
	for l, layer := range order {
		for i, n := range layer {
			node := &d.Nodes[n]
			if i > 0 {
				spans[l] += nodeSep
			}
			spans[l] += crossOf(node)
			thick[l] = math.Max(thick[l], mainOf(node))
		}
		widest = math.Max(widest, spans[l])
	}

	mainPos := margin
	for l, layer := range order {
		cross := margin + (widest-spans[l])/2
		for _, n := range layer {
			node := &d.Nodes[n]
			m := mainPos + (thick[l]-mainOf(node))/2
			if horizontal {
				node.X, node.Y = m, cross
			} else {
				node.X, node.Y = cross, m
			}
			cross += crossOf(node) + nodeSep
		}
		mainPos += thick[l]
		if l < len(order)-1 {
			mainPos += rankSep
		}
	}

	total := mainPos + margin
	if horizontal {
		d.Width, d.Height = total, widest+2*margin
	} else {
		d.Width, d.Height = widest+2*margin, total
	}

	switch d.Direction {
	case model.DirBottomUp:
		for i := range d.Nodes {
			n := &d.Nodes[i]
			n.Y = d.Height - n.Y - n.H
		}
	case model.DirRightLeft:
		for i := range d.Nodes {
			n := &d.Nodes[i]
			n.X = d.Width - n.X - n.W
		}
	}
}

// route returns the polyline for an edge between two placed nodes.
func route(from, to model.Node, dir model.Direction) []model.Point {
	if from.ID == to.ID {
		return selfLoop(from, dir)
	}
	a, b := from.Center(), to.Center()
	return []model.Point{clip(from, b), clip(to, a)}
}

// selfLoop draws a loop off the side of the node that faces away from the
// flow, so it never crosses the node's own edges.
func selfLoop(n model.Node, dir model.Direction) []model.Point {
	c := n.Center()
	if dir.Horizontal() {
		top := n.Y
		return []model.Point{
			{X: c.X - n.W/4, Y: top},
			{X: c.X - n.W/4, Y: top - loopReach},
			{X: c.X + n.W/4, Y: top - loopReach},
			{X: c.X + n.W/4, Y: top},
		}
	}
	right := n.X + n.W
	if n.Shape == model.ShapeDiamond || n.Shape == model.ShapeCircle {
		right = c.X + n.W/2*0.7
	}
	return []model.Point{
		{X: right, Y: c.Y - n.H/4},
		{X: right + loopReach, Y: c.Y - n.H/4},
		{X: right + loopReach, Y: c.Y + n.H/4},
		{X: right, Y: c.Y + n.H/4},
	}
}

// clip returns where the ray from the node center toward target leaves the
// node outline.
func clip(n model.Node, target model.Point) model.Point {
	c := n.Center()
	dx, dy := target.X-c.X, target.Y-c.Y
	if dx == 0 && dy == 0 {
		return c
	}
	hw, hh := n.W/2, n.H/2

	var t float64
	switch n.Shape {
	case model.ShapeCircle:
		t = math.Min(hw, hh) / math.Hypot(dx, dy)
	case model.ShapeDiamond:
		t = 1 / (math.Abs(dx)/hw + math.Abs(dy)/hh)
	default:
		tx, ty := math.Inf(1), math.Inf(1)
		if dx != 0 {
			tx = hw / math.Abs(dx)
		}
		if dy != 0 {
			ty = hh / math.Abs(dy)
		}
		t = math.Min(tx, ty)
	}
	return model.Point{X: c.X + dx*t, Y: c.Y + dy*t}
}
