package points

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"nyiyui.ca/hato/daisha/curve"
)

func (g *Graph) checkCurve(ref CurveRef) error {
	if ref.Start == ref.End {
		return fmt.Errorf("start and end are both %d: %w", ref.Start, ErrInvalidCurve)
	}
	for _, h := range []Handle{ref.Start, ref.End} {
		if _, ok := g.Anchor(h); !ok {
			return fmt.Errorf("endpoint %d is not an anchor: %w", h, ErrInvalidCurve)
		}
	}
	for _, pair := range [][2]Handle{{ref.StartControl, ref.Start}, {ref.EndControl, ref.End}} {
		c, ok := g.Control(pair[0])
		if !ok {
			return fmt.Errorf("control %d is not a control: %w", pair[0], ErrInvalidCurve)
		}
		if c.Owner != pair[1] {
			return fmt.Errorf("control %d belongs to %d, not %d: %w", pair[0], c.Owner, pair[1], ErrInvalidCurve)
		}
		if i, ok := g.CurveContaining(pair[0]); ok {
			return fmt.Errorf("control %d already used by curve %d: %w", pair[0], i, ErrInvalidCurve)
		}
	}
	return nil
}

// AddCurve adds a curve between two anchors through their controls.
// The curve is dirty until the next Rebuild.
func (g *Graph) AddCurve(ref CurveRef) (int, error) {
	if err := g.checkCurve(ref); err != nil {
		return -1, err
	}
	g.curves = append(g.curves, curveEntry{CurveRef: ref, dirty: true})
	return len(g.curves) - 1, nil
}

// Connect joins anchors a and b with a new curve, adding a control on each anchor pointing toward the other at a third of the distance between them.
func (g *Graph) Connect(a, b Handle) (int, error) {
	aa, ok := g.Anchor(a)
	if !ok {
		return -1, fmt.Errorf("connect: %d is not an anchor: %w", a, ErrInvalidCurve)
	}
	ba, ok := g.Anchor(b)
	if !ok {
		return -1, fmt.Errorf("connect: %d is not an anchor: %w", b, ErrInvalidCurve)
	}
	if a == b {
		return -1, fmt.Errorf("connect: %d to itself: %w", a, ErrInvalidCurve)
	}
	d := ba.Position.Sub(aa.Position)
	dist := d.Len() / 3
	ac := g.AddControl(a, dist, curve.Forward(aa.Rotation).Dot(d) < 0)
	bc := g.AddControl(b, dist, curve.Forward(ba.Rotation).Dot(d) > 0)
	return g.AddCurve(CurveRef{Start: a, StartControl: ac, EndControl: bc, End: b})
}

// CurveRef returns the points of curve i.
func (g *Graph) CurveRef(i int) (CurveRef, bool) {
	if i < 0 || i >= len(g.curves) || g.curves[i].removed {
		return CurveRef{}, false
	}
	return g.curves[i].CurveRef, true
}

// Curves returns the indices of all curves that have not been removed.
func (g *Graph) Curves() []int {
	res := make([]int, 0, len(g.curves))
	for i, e := range g.curves {
		if !e.removed {
			res = append(res, i)
		}
	}
	return res
}

// Curve returns the geometry of curve i.
func (g *Graph) Curve(i int) (*curve.Curve, error) {
	if i < 0 || i >= len(g.curves) {
		return nil, fmt.Errorf("curve %d: %w", i, ErrIndexOutOfRange)
	}
	e := g.curves[i]
	if e.removed {
		return nil, fmt.Errorf("curve %d removed: %w", i, ErrInvalidCurve)
	}
	if e.dirty || e.geom == nil {
		return nil, fmt.Errorf("curve %d: %w", i, ErrStale)
	}
	return e.geom, nil
}

// CurveContaining returns the curve using control h.
func (g *Graph) CurveContaining(h Handle) (int, bool) {
	for i, e := range g.curves {
		if e.removed {
			continue
		}
		if e.StartControl == h || e.EndControl == h {
			return i, true
		}
	}
	return -1, false
}

// Opposite returns the other end of curve i as seen from anchor, and whether anchor is the curve's end (i.e. travel from anchor runs end→start).
func (g *Graph) Opposite(i int, anchor Handle) (other, otherControl Handle, reverse bool) {
	ref, ok := g.CurveRef(i)
	if !ok {
		panic(fmt.Sprintf("Opposite: curve %d doesn't exist", i))
	}
	switch anchor {
	case ref.Start:
		return ref.End, ref.EndControl, false
	case ref.End:
		return ref.Start, ref.StartControl, true
	default:
		panic(fmt.Sprintf("Opposite: anchor %d not on curve %d", anchor, i))
	}
}

// Dirty reports whether any curve needs a Rebuild.
func (g *Graph) Dirty() bool {
	for _, e := range g.curves {
		if !e.removed && e.dirty {
			return true
		}
	}
	return false
}

// Rebuild recomputes the geometry, arc length, and distance table of every curve edited since the last Rebuild.
// It returns the number of curves rebuilt.
func (g *Graph) Rebuild() int {
	n := 0
	for i := range g.curves {
		e := &g.curves[i]
		if e.removed || !e.dirty {
			continue
		}
		e.geom = g.geometry(e.CurveRef)
		e.geom.Rebuild(g.Segments)
		e.dirty = false
		n++
	}
	return n
}

func (g *Graph) geometry(ref CurveRef) *curve.Curve {
	s := g.mustAnchor(ref.Start)
	e := g.mustAnchor(ref.End)
	return curve.New(
		s.Position,
		g.mustControl(ref.StartControl).Position,
		g.mustControl(ref.EndControl).Position,
		e.Position,
		s.Rotation,
		e.Rotation,
	)
}

func (g *Graph) removeCurve(i int) {
	g.curves[i].removed = true
	g.curves[i].geom = nil
}

// Remove deletes a point.
// Removing an anchor removes its controls; removing either removes every curve using them.
func (g *Graph) Remove(h Handle) {
	p, ok := g.Point(h)
	if !ok {
		return
	}
	switch p := p.(type) {
	case *Anchor:
		for _, ch := range p.Controls {
			g.dropControlCurves(ch)
			g.points[ch] = nil
		}
		for i, e := range g.curves {
			if !e.removed && (e.Start == h || e.End == h) {
				g.removeCurve(i)
			}
		}
	case *Control:
		g.dropControlCurves(h)
		if a, ok := g.Anchor(p.Owner); ok {
			a.Controls = removeHandle(a.Controls, h)
		}
	}
	g.points[h] = nil
}

func (g *Graph) dropControlCurves(h Handle) {
	for i, e := range g.curves {
		if !e.removed && (e.StartControl == h || e.EndControl == h) {
			g.removeCurve(i)
		}
	}
}

// Split cuts curve i at parameter t into two curves joined by a new anchor.
// The new anchor faces along the curve and owns one control on each side.
func (g *Graph) Split(i int, t float64) (Handle, error) {
	ref, ok := g.CurveRef(i)
	if !ok {
		return NoHandle, fmt.Errorf("split curve %d: %w", i, ErrIndexOutOfRange)
	}
	if t <= 0 || t >= 1 {
		return NoHandle, fmt.Errorf("split curve %d at t=%f: t must be inside (0, 1)", i, t)
	}
	geom := g.geometry(ref)
	p0, p1, p2, p3 := geom.Start, geom.StartControl, geom.EndControl, geom.End
	lerp := func(a, b mgl64.Vec3) mgl64.Vec3 { return a.Add(b.Sub(a).Mul(t)) }
	p01, p12, p23 := lerp(p0, p1), lerp(p1, p2), lerp(p2, p3)
	p012, p123 := lerp(p01, p12), lerp(p12, p23)
	mid := lerp(p012, p123)

	rot := curve.LookRotation(geom.TangentAt(t), geom.NormalAt(t))
	anchor := g.AddAnchor(mid, rot)
	back := g.AddControl(anchor, mid.Sub(p012).Len(), true)
	front := g.AddControl(anchor, p123.Sub(mid).Len(), false)

	sc := g.mustControl(ref.StartControl)
	sc.Distance = p01.Sub(p0).Len()
	sc.Position = p01
	ec := g.mustControl(ref.EndControl)
	ec.Distance = p23.Sub(p3).Len()
	ec.Position = p23

	g.curves[i] = curveEntry{
		CurveRef: CurveRef{Start: ref.Start, StartControl: ref.StartControl, EndControl: back, End: anchor},
		dirty:    true,
	}
	g.curves = append(g.curves, curveEntry{
		CurveRef: CurveRef{Start: anchor, StartControl: front, EndControl: ref.EndControl, End: ref.End},
		dirty:    true,
	})
	return anchor, nil
}

// Merge folds anchor drop into anchor keep.
// drop's controls are re-attached to keep (re-derived along keep's axis), curves using drop use keep instead, and curves that would start and end at keep are removed along with their controls.
func (g *Graph) Merge(keep, drop Handle) error {
	ka, ok := g.Anchor(keep)
	if !ok {
		return fmt.Errorf("merge: %d is not an anchor: %w", keep, ErrInvalidCurve)
	}
	da, ok := g.Anchor(drop)
	if !ok {
		return fmt.Errorf("merge: %d is not an anchor: %w", drop, ErrInvalidCurve)
	}
	if keep == drop {
		return nil
	}
	forward := curve.Forward(ka.Rotation)
	for _, ch := range da.Controls {
		c := g.mustControl(ch)
		d := c.Position.Sub(ka.Position)
		c.Owner = keep
		c.Distance = d.Len()
		c.Flipped = forward.Dot(d) < 0
		ka.Controls = append(ka.Controls, ch)
	}
	da.Controls = nil
	for i := range g.curves {
		e := &g.curves[i]
		if e.removed {
			continue
		}
		if e.Start == drop {
			e.Start = keep
			e.dirty = true
		}
		if e.End == drop {
			e.End = keep
			e.dirty = true
		}
		if e.Start == e.End {
			for _, ch := range []Handle{e.StartControl, e.EndControl} {
				ka.Controls = removeHandle(ka.Controls, ch)
				g.points[ch] = nil
			}
			g.removeCurve(i)
		}
	}
	g.points[drop] = nil
	g.syncControls(keep, NoHandle)
	g.markDirty(keep)
	return nil
}
