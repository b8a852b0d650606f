// Package points holds the authoring-time arena of anchors, control points, and the curves between them.
//
// Points are addressed by stable Handles. Anchors list their controls by handle and
// controls name their owning anchor by handle, so there are no pointer cycles.
package points

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/daisha/curve"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidCurve    = errors.New("invalid curve")
	// ErrStale is returned for curves whose points moved since the last Rebuild.
	ErrStale = errors.New("curve not rebuilt since last edit")
)

// Handle identifies a point in a Graph. Handles are never reused.
type Handle int

// NoHandle is the handle of nothing.
const NoHandle Handle = -1

// Point is either an *Anchor or a *Control.
type Point interface {
	Pos() mgl64.Vec3
	isPoint()
}

// Anchor is a curve endpoint.
type Anchor struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	// Controls owned by this anchor, in no particular order.
	Controls []Handle
}

func (a *Anchor) Pos() mgl64.Vec3 { return a.Position }
func (*Anchor) isPoint()          {}

// Control is a Bezier handle belonging to exactly one anchor.
// Its position is always Owner.Position + Owner.Rotation * (±forward) * Distance.
type Control struct {
	Position mgl64.Vec3
	Owner    Handle
	Distance float64
	// Flipped selects the backward axis of the owner instead of the forward one.
	Flipped bool
}

func (c *Control) Pos() mgl64.Vec3 { return c.Position }
func (*Control) isPoint()          {}

// Axis returns the unit direction from the owner toward c given the owner's rotation.
func (c *Control) Axis(ownerRotation mgl64.Quat) mgl64.Vec3 {
	f := curve.Forward(ownerRotation)
	if c.Flipped {
		return f.Mul(-1)
	}
	return f
}

// CurveRef names the four points of a curve.
type CurveRef struct {
	Start        Handle
	StartControl Handle
	EndControl   Handle
	End          Handle
}

type curveEntry struct {
	CurveRef
	geom    *curve.Curve
	dirty   bool
	removed bool
}

// Graph is the arena.
type Graph struct {
	points []Point
	curves []curveEntry
	// Segments is the number of distance samples per curve used by Rebuild.
	Segments int
}

func New() *Graph {
	return &Graph{Segments: curve.DefaultTableSegments}
}

// Point returns the point for h, or false if h was removed or never existed.
func (g *Graph) Point(h Handle) (Point, bool) {
	if h < 0 || int(h) >= len(g.points) || g.points[h] == nil {
		return nil, false
	}
	return g.points[h], true
}

func (g *Graph) Anchor(h Handle) (*Anchor, bool) {
	p, ok := g.Point(h)
	if !ok {
		return nil, false
	}
	a, ok := p.(*Anchor)
	return a, ok
}

func (g *Graph) Control(h Handle) (*Control, bool) {
	p, ok := g.Point(h)
	if !ok {
		return nil, false
	}
	c, ok := p.(*Control)
	return c, ok
}

func (g *Graph) mustAnchor(h Handle) *Anchor {
	a, ok := g.Anchor(h)
	if !ok {
		panic(fmt.Sprintf("handle %d is not an anchor", h))
	}
	return a
}

func (g *Graph) mustControl(h Handle) *Control {
	c, ok := g.Control(h)
	if !ok {
		panic(fmt.Sprintf("handle %d is not a control", h))
	}
	return c
}

// Anchors returns the handles of all live anchors in creation order.
func (g *Graph) Anchors() []Handle {
	res := make([]Handle, 0, len(g.points))
	for i, p := range g.points {
		if _, ok := p.(*Anchor); ok {
			res = append(res, Handle(i))
		}
	}
	return res
}

func (g *Graph) add(p Point) Handle {
	g.points = append(g.points, p)
	return Handle(len(g.points) - 1)
}

func (g *Graph) AddAnchor(pos mgl64.Vec3, rot mgl64.Quat) Handle {
	return g.add(&Anchor{Position: pos, Rotation: normalizeRotation(rot)})
}

// AddControl attaches a new control to anchor. Its position is derived from distance and flipped.
func (g *Graph) AddControl(anchor Handle, distance float64, flipped bool) Handle {
	a := g.mustAnchor(anchor)
	c := &Control{Owner: anchor, Distance: distance, Flipped: flipped}
	c.Position = a.Position.Add(c.Axis(a.Rotation).Mul(distance))
	h := g.add(c)
	a.Controls = append(a.Controls, h)
	return h
}

// syncControls recomputes the positions of the controls of anchor, except skip.
func (g *Graph) syncControls(anchor Handle, skip Handle) {
	a := g.mustAnchor(anchor)
	for _, ch := range a.Controls {
		if ch == skip {
			continue
		}
		c := g.mustControl(ch)
		c.Position = a.Position.Add(c.Axis(a.Rotation).Mul(c.Distance))
	}
}

// MoveAnchor moves and rotates an anchor. Its controls follow.
func (g *Graph) MoveAnchor(h Handle, pos mgl64.Vec3, rot mgl64.Quat) {
	a := g.mustAnchor(h)
	a.Position = pos
	a.Rotation = normalizeRotation(rot)
	g.syncControls(h, NoHandle)
	g.markDirty(h)
}

// MoveControl moves a control. The owning anchor is re-oriented so that its axis passes through the control, and the anchor's other controls are repositioned from the new orientation.
func (g *Graph) MoveControl(h Handle, pos mgl64.Vec3) {
	c := g.mustControl(h)
	a := g.mustAnchor(c.Owner)
	d := pos.Sub(a.Position)
	c.Position = pos
	c.Distance = d.Len()
	if c.Distance > 1e-12 {
		forward := d.Normalize()
		if c.Flipped {
			forward = forward.Mul(-1)
		}
		a.Rotation = curve.LookRotation(forward, curve.Up(a.Rotation))
	}
	g.syncControls(c.Owner, h)
	g.markDirty(c.Owner)
}

func (g *Graph) markDirty(anchor Handle) {
	for i := range g.curves {
		e := &g.curves[i]
		if e.removed {
			continue
		}
		if e.Start == anchor || e.End == anchor {
			e.dirty = true
		}
	}
}

func normalizeRotation(q mgl64.Quat) mgl64.Quat {
	if q.Len() < 1e-12 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

func removeHandle(s []Handle, h Handle) []Handle {
	if i := slices.Index(s, h); i != -1 {
		return slices.Delete(s, i, i+1)
	}
	return s
}
