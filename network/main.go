// Package network derives the rail node graph that the router searches from a point graph.
package network

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/daisha/curve"
	"nyiyui.ca/hato/daisha/points"
	"nyiyui.ca/hato/daisha/route"
)

// Neighbour is a directed edge from a sub-node to the sub-node of another rail node.
type Neighbour struct {
	Target   route.NodeRef
	CurveI   int
	Curve    *curve.Curve
	Distance float64
	// Leaving is the travel direction when leaving the source node.
	Leaving mgl64.Vec3
	// Entering is the target anchor's axis toward the curve, i.e. against the direction of travel on arrival.
	Entering mgl64.Vec3
	// Reverse is set if the edge runs from the curve's end to its start.
	Reverse bool
}

type SubNode struct {
	Neighbours []Neighbour
}

// RailNode is the traversal node for one anchor.
type RailNode struct {
	Index    int
	Anchor   points.Handle
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Sub      [2]SubNode
	// reachable is set for sides some edge lands on.
	reachable [2]bool
}

type Network struct {
	Nodes     []RailNode
	byAnchor  map[points.Handle]int
	waypoints map[string]Waypoint
	names     []string
}

// Build creates one RailNode per anchor and one edge per (control, sub-node) pair.
// The graph must be freshly rebuilt; dirty curves make Build fail with points.ErrStale.
// waypoints are assigned to their nearest node.
func Build(g *points.Graph, waypoints []Waypoint) (*Network, error) {
	if g.Dirty() {
		return nil, fmt.Errorf("build network: %w", points.ErrStale)
	}
	n := &Network{
		byAnchor:  map[points.Handle]int{},
		waypoints: map[string]Waypoint{},
	}
	for _, h := range g.Anchors() {
		a, _ := g.Anchor(h)
		n.byAnchor[h] = len(n.Nodes)
		n.Nodes = append(n.Nodes, RailNode{
			Index:    len(n.Nodes),
			Anchor:   h,
			Position: a.Position,
			Rotation: a.Rotation,
		})
	}
	for ni := range n.Nodes {
		if err := n.connect(g, ni); err != nil {
			return nil, err
		}
	}
	for _, wp := range waypoints {
		if err := n.register(wp); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Network) connect(g *points.Graph, ni int) error {
	node := &n.Nodes[ni]
	anchor, _ := g.Anchor(node.Anchor)
	for _, ch := range anchor.Controls {
		ci, ok := g.CurveContaining(ch)
		if !ok {
			zap.S().Debugf("control %d of anchor %d is not on any curve", ch, node.Anchor)
			continue
		}
		geom, err := g.Curve(ci)
		if err != nil {
			return fmt.Errorf("build network: curve %d: %w", ci, err)
		}
		other, otherCh, reverse := g.Opposite(ci, node.Anchor)
		oi, ok := n.byAnchor[other]
		if !ok {
			panic(fmt.Sprintf("curve %d ends at non-anchor %d", ci, other))
		}
		c, _ := g.Control(ch)
		oc, _ := g.Control(otherCh)
		oa, _ := g.Anchor(other)
		side := route.SideB
		if c.Flipped != oc.Flipped {
			side = route.SideA
		}
		nb := Neighbour{
			Target:   route.NodeRef{Node: oi, Side: side},
			CurveI:   ci,
			Curve:    geom,
			Distance: geom.Length(),
			Leaving:  c.Axis(anchor.Rotation),
			Entering: oc.Axis(oa.Rotation),
			Reverse:  reverse,
		}
		for s := range node.Sub {
			node.Sub[s].Neighbours = append(node.Sub[s].Neighbours, nb)
		}
		n.Nodes[oi].reachable[side] = true
	}
	return nil
}

// checkRef panics if ref doesn't exist in this Network.
func (n *Network) checkRef(ref route.NodeRef) {
	if !n.Valid(ref) {
		panic(fmt.Sprintf("invalid NodeRef %s", ref))
	}
}

// Valid reports whether ref names an existing sub-node.
func (n *Network) Valid(ref route.NodeRef) bool {
	return ref.Node >= 0 && ref.Node < len(n.Nodes) && (ref.Side == route.SideA || ref.Side == route.SideB)
}

// Reachable reports whether any edge lands on ref.
func (n *Network) Reachable(ref route.NodeRef) bool {
	return n.Valid(ref) && n.Nodes[ref.Node].reachable[ref.Side]
}

func (n *Network) Node(i int) (*RailNode, bool) {
	if i < 0 || i >= len(n.Nodes) {
		return nil, false
	}
	return &n.Nodes[i], true
}

// Neighbours returns the edges leaving ref.
func (n *Network) Neighbours(ref route.NodeRef) []Neighbour {
	n.checkRef(ref)
	return n.Nodes[ref.Node].Sub[ref.Side].Neighbours
}

// ByAnchor returns the node index for an anchor handle.
func (n *Network) ByAnchor(h points.Handle) (int, bool) {
	i, ok := n.byAnchor[h]
	return i, ok
}

// Random picks a reachable sub-node uniformly.
func (n *Network) Random(rng *rand.Rand) (route.NodeRef, bool) {
	refs := make([]route.NodeRef, 0, 2*len(n.Nodes))
	for i, node := range n.Nodes {
		for s, ok := range node.reachable {
			if ok {
				refs = append(refs, route.NodeRef{Node: i, Side: route.Side(s)})
			}
		}
	}
	if len(refs) == 0 {
		return route.NodeRef{}, false
	}
	return refs[rng.Intn(len(refs))], true
}

type SidePreference int

const (
	// PreferAuto picks A when the node faces the same way as the query rotation, B otherwise.
	PreferAuto SidePreference = iota
	PreferA
	PreferB
)

// Nearest returns the node closest to pos.
func (n *Network) Nearest(pos mgl64.Vec3, rot mgl64.Quat, pref SidePreference) (route.NodeRef, bool) {
	best := -1
	bestD := math.Inf(1)
	for i, node := range n.Nodes {
		if d := node.Position.Sub(pos).Len(); d < bestD {
			best, bestD = i, d
		}
	}
	if best == -1 {
		return route.NodeRef{}, false
	}
	ref := route.NodeRef{Node: best}
	switch pref {
	case PreferA:
		ref.Side = route.SideA
	case PreferB:
		ref.Side = route.SideB
	default:
		if curve.Forward(n.Nodes[best].Rotation).Dot(curve.Forward(rot)) < 0 {
			ref.Side = route.SideB
		}
	}
	return ref, true
}

func (n *Network) register(wp Waypoint) error {
	name := wp.Name()
	if _, ok := n.waypoints[name]; ok {
		return fmt.Errorf("build network: duplicate waypoint %q", name)
	}
	ref, ok := n.Nearest(wp.Position(), mgl64.QuatIdent(), PreferAuto)
	if !ok {
		return fmt.Errorf("build network: waypoint %q: no nodes", name)
	}
	wp.setNode(ref.Node)
	n.waypoints[name] = wp
	i, _ := slices.BinarySearch(n.names, name)
	n.names = slices.Insert(n.names, i, name)
	return nil
}

func (n *Network) Waypoint(name string) (Waypoint, bool) {
	wp, ok := n.waypoints[name]
	return wp, ok
}

// Waypoints returns all waypoints ordered by name.
func (n *Network) Waypoints() []Waypoint {
	res := make([]Waypoint, len(n.names))
	for i, name := range n.names {
		res[i] = n.waypoints[name]
	}
	return res
}
