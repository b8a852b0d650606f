// Package router finds shortest routes over a rail network without reversing direction.
package router

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/network"
	"nyiyui.ca/hato/daisha/route"
)

func reverse[S ~[]E, E any](s S) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

type Router struct {
	net *network.Network
}

func New(net *network.Network) *Router {
	if net == nil {
		panic("router: nil network")
	}
	return &Router{net: net}
}

type state struct {
	ref    route.NodeRef
	g, f   float64
	parent int
	// via is the edge from parent; nil for the start.
	via    *network.Neighbour
	closed bool
}

// Route searches from start, initially heading in heading, to end, and writes the result to out.
// out's previous sections are discarded; its backing array is reused.
//
// On the first step an edge is skipped if it leaves against heading (a zero heading allows any edge).
// After that, an edge is skipped if it would leave in the direction the path arrived from.
func (r *Router) Route(start route.NodeRef, heading mgl64.Vec3, end route.NodeRef, out *route.Route) route.State {
	out.Reset()
	if start == end || !r.net.Valid(start) || !r.net.Valid(end) {
		zap.S().Debugf("route %s → %s: invalid request", start, end)
		out.State = route.StateFailed
		return out.State
	}
	goal := r.net.Nodes[end.Node].Position
	h := func(ref route.NodeRef) float64 {
		return r.net.Nodes[ref.Node].Position.Sub(goal).Len()
	}

	states := []state{{ref: start, f: h(start), parent: -1}}
	index := map[route.NodeRef]int{start: 0}
	open := []int{0}
	for len(open) > 0 {
		oi := 0
		for i, si := range open {
			if states[si].f < states[open[oi]].f {
				oi = i
			}
		}
		ci := open[oi]
		open = append(open[:oi], open[oi+1:]...)
		states[ci].closed = true
		cur := states[ci]
		if cur.ref == end {
			r.reconstruct(states, ci, out)
			return out.State
		}
		nbs := r.net.Neighbours(cur.ref)
		for ni := range nbs {
			nb := &nbs[ni]
			if cur.via == nil {
				if heading.Dot(nb.Leaving) < 0 {
					continue
				}
			} else if cur.via.Entering.Dot(nb.Leaving) > 0 {
				continue
			}
			g := cur.g + nb.Distance
			ti, seen := index[nb.Target]
			if !seen {
				index[nb.Target] = len(states)
				open = append(open, len(states))
				states = append(states, state{ref: nb.Target, g: g, f: g + h(nb.Target), parent: ci, via: nb})
				continue
			}
			t := &states[ti]
			if t.closed || g >= t.g {
				continue
			}
			t.g, t.f, t.parent, t.via = g, g+h(t.ref), ci, nb
		}
	}
	zap.S().Debugf("route %s → %s: unreachable", start, end)
	out.State = route.StateFailed
	return out.State
}

func (r *Router) reconstruct(states []state, last int, out *route.Route) {
	for si := last; states[si].parent != -1; si = states[si].parent {
		s := states[si]
		from := states[s.parent].ref
		out.Sections = append(out.Sections, route.Section{
			Node:     from.Node,
			Side:     from.Side,
			CurveI:   s.via.CurveI,
			Curve:    s.via.Curve,
			Reverse:  s.via.Reverse,
			Leaving:  s.via.Leaving,
			Entering: s.via.Entering,
		})
	}
	reverse(out.Sections)
	end := states[last].ref
	out.Sections = append(out.Sections, route.Section{Node: end.Node, Side: end.Side, CurveI: -1})
	out.State = route.StateSuccess
}

// Heading returns the direction a vehicle faces after travelling s.
func Heading(s route.Section) mgl64.Vec3 {
	return s.Entering.Mul(-1)
}
