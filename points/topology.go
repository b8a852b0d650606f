package points

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

type Kind string

const (
	KindAnchor  Kind = "anchor"
	KindControl Kind = "control"
)

// PointRecord is one stored point.
type PointRecord struct {
	Kind     Kind       `json:"kind"`
	Position [3]float64 `json:"position"`
	// Rotation is x, y, z, w. Ignored for controls.
	Rotation [4]float64 `json:"rotation,omitempty"`
	// Flipped is ignored for anchors.
	Flipped bool `json:"flipped,omitempty"`
}

// CurveRecord is start anchor, start control, end control, end anchor, as indices into Topology.Points.
type CurveRecord [4]int

// Topology is the flat form of a Graph.
type Topology struct {
	Points []PointRecord `json:"points"`
	Curves []CurveRecord `json:"curves"`
}

func vec(v [3]float64) mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }

func quat(v [4]float64) mgl64.Quat {
	return mgl64.Quat{W: v[3], V: mgl64.Vec3{v[0], v[1], v[2]}}
}

// Load materializes a Graph from t and rebuilds every curve.
// Point handles equal their index in t.Points, and curve indices equal their index in t.Curves.
// A curve that references a missing or mistyped point is skipped (left removed) and its error returned; loading continues with the rest.
// Controls that no curve uses are dropped.
func Load(t Topology) (*Graph, []error) {
	g := New()
	var errs []error
	for i, rec := range t.Points {
		switch rec.Kind {
		case KindAnchor:
			g.add(&Anchor{Position: vec(rec.Position), Rotation: normalizeRotation(quat(rec.Rotation))})
		case KindControl:
			g.add(&Control{Position: vec(rec.Position), Owner: NoHandle, Flipped: rec.Flipped})
		default:
			g.points = append(g.points, nil)
			errs = append(errs, fmt.Errorf("point %d: unknown kind %q", i, rec.Kind))
		}
	}
	for i, rec := range t.Curves {
		if err := g.loadCurve(rec); err != nil {
			err = fmt.Errorf("curve %d: %w", i, err)
			zap.S().Warnw("skipping curve", "index", i, "err", err)
			errs = append(errs, err)
			g.curves = append(g.curves, curveEntry{removed: true})
		}
	}
	for h, p := range g.points {
		if c, ok := p.(*Control); ok && c.Owner == NoHandle {
			zap.S().Debugf("dropping control %d: no curve uses it", h)
			g.points[h] = nil
		}
	}
	g.Rebuild()
	return g, errs
}

func (g *Graph) loadCurve(rec CurveRecord) error {
	for _, i := range rec {
		if i < 0 || i >= len(g.points) {
			return fmt.Errorf("point index %d (of %d): %w", i, len(g.points), ErrIndexOutOfRange)
		}
		if g.points[i] == nil {
			return fmt.Errorf("point %d missing: %w", i, ErrInvalidCurve)
		}
	}
	ref := CurveRef{Start: Handle(rec[0]), StartControl: Handle(rec[1]), EndControl: Handle(rec[2]), End: Handle(rec[3])}
	pairs := [][2]Handle{{ref.StartControl, ref.Start}, {ref.EndControl, ref.End}}
	for _, pair := range pairs {
		c, ok := g.Control(pair[0])
		if !ok {
			return fmt.Errorf("point %d is not a control: %w", pair[0], ErrInvalidCurve)
		}
		if _, ok := g.Anchor(pair[1]); !ok {
			return fmt.Errorf("point %d is not an anchor: %w", pair[1], ErrInvalidCurve)
		}
		if c.Owner != NoHandle && c.Owner != pair[1] {
			return fmt.Errorf("control %d already belongs to %d: %w", pair[0], c.Owner, ErrInvalidCurve)
		}
	}
	if ref.Start == ref.End {
		return fmt.Errorf("start and end are both %d: %w", ref.Start, ErrInvalidCurve)
	}
	if ref.StartControl == ref.EndControl {
		return fmt.Errorf("both ends use control %d: %w", ref.StartControl, ErrInvalidCurve)
	}
	type saved struct {
		h Handle
		c Control
	}
	var attached []saved
	for _, pair := range pairs {
		c := g.mustControl(pair[0])
		if c.Owner != NoHandle {
			continue
		}
		attached = append(attached, saved{pair[0], *c})
		a := g.mustAnchor(pair[1])
		c.Owner = pair[1]
		c.Distance = c.Position.Sub(a.Position).Len()
		c.Position = a.Position.Add(c.Axis(a.Rotation).Mul(c.Distance))
		a.Controls = append(a.Controls, pair[0])
	}
	if _, err := g.AddCurve(ref); err != nil {
		// a rejected record leaves its controls as they were
		for _, s := range attached {
			c := g.mustControl(s.h)
			a := g.mustAnchor(c.Owner)
			a.Controls = removeHandle(a.Controls, s.h)
			*c = s.c
		}
		return err
	}
	return nil
}
