package model

import "fmt"

// Direction is the flow direction of a flowchart.
type Direction string

const (
	DirTopDown   Direction = "TD"
	DirBottomUp  Direction = "BT"
	DirLeftRight Direction = "LR"
	DirRightLeft Direction = "RL"
)

// IsValid returns true if the direction is a recognized value
func (d Direction) IsValid() bool {
	switch d {
	case DirTopDown, DirBottomUp, DirLeftRight, DirRightLeft:
		return true
	}
	return false
}

// Horizontal reports whether layers run left/right.
func (d Direction) Horizontal() bool {
	return d == DirLeftRight || d == DirRightLeft
}

// Shape is the outline drawn around a node label.
type Shape string

const (
	ShapeRect    Shape = "rect"
	ShapeRound   Shape = "round"
	ShapeDiamond Shape = "diamond"
	ShapeCircle  Shape = "circle"
)

// EdgeKind is the stroke style of an edge.
type EdgeKind string

const (
	EdgeSolid  EdgeKind = "solid"  // -->
	EdgeOpen   EdgeKind = "open"   // ---
	EdgeDotted EdgeKind = "dotted" // -.->
	EdgeThick  EdgeKind = "thick"  // ==>
)

// HasArrow reports whether the edge ends in an arrowhead.
func (k EdgeKind) HasArrow() bool {
	return k != EdgeOpen
}

// Style overrides the theme colors of a node. Empty fields use the theme.
type Style struct {
	Fill   string `json:"fill,omitempty"`
	Stroke string `json:"stroke,omitempty"`
	Color  string `json:"color,omitempty"`
}

// Point is a position in diagram pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a laid-out diagram node. X and Y are the top-left corner.
type Node struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Shape Shape   `json:"shape"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Style Style   `json:"style,omitempty"`
	Layer int     `json:"layer"`
}

// Center returns the center point of the node.
func (n Node) Center() Point {
	return Point{X: n.X + n.W/2, Y: n.Y + n.H/2}
}

// Edge connects two nodes. Points is the routed polyline, first point on
// the source outline, last point on the target outline.
type Edge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Label  string   `json:"label,omitempty"`
	Kind   EdgeKind `json:"kind"`
	Points []Point  `json:"points"`
}

// Diagram is a fully laid-out scene in natural (unscaled) pixels.
type Diagram struct {
	Direction Direction `json:"direction"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
}

// Node returns the node with the given ID.
func (d *Diagram) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Validate checks that every edge references existing nodes.
func (d *Diagram) Validate() error {
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if ids[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}
	for _, e := range d.Edges {
		if !ids[e.From] {
			return fmt.Errorf("edge references unknown node %q", e.From)
		}
		if !ids[e.To] {
			return fmt.Errorf("edge references unknown node %q", e.To)
		}
	}
	return nil
}
