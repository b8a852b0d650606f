// Package preset has hard-coded layouts for testing and demos.
package preset

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
	"nyiyui.ca/hato/daisha/curve"
	"nyiyui.ca/hato/daisha/points"
)

// kappa places Bezier controls so that four curves approximate a circle.
const kappa = 0.5522847498

func rotation(q mgl64.Quat) [4]float64 {
	return [4]float64{q.V[0], q.V[1], q.V[2], q.W}
}

func position(v mgl64.Vec3) [3]float64 {
	return [3]float64{v[0], v[1], v[2]}
}

type builder struct {
	t points.Topology
}

func (b *builder) anchor(pos, forward mgl64.Vec3) int {
	b.t.Points = append(b.t.Points, points.PointRecord{
		Kind:     points.KindAnchor,
		Position: position(pos),
		Rotation: rotation(curve.LookRotation(forward, mgl64.Vec3{0, 1, 0})),
	})
	return len(b.t.Points) - 1
}

func (b *builder) control(pos mgl64.Vec3, flipped bool) int {
	b.t.Points = append(b.t.Points, points.PointRecord{
		Kind:     points.KindControl,
		Position: position(pos),
		Flipped:  flipped,
	})
	return len(b.t.Points) - 1
}

// join connects from (travelling forward out of it) and to (arriving at it travelling forward).
func (b *builder) join(from, to int, fromPos, fromForward, toPos, toForward mgl64.Vec3, dist float64) {
	fc := b.control(fromPos.Add(fromForward.Mul(dist)), false)
	tc := b.control(toPos.Sub(toForward.Mul(dist)), true)
	b.t.Curves = append(b.t.Curves, points.CurveRecord{from, fc, tc, to})
}

// loop adds a counterclockwise (seen from +Y) circle of four curves around centre.
// Every anchor faces the direction of travel.
func (b *builder) loop(centre mgl64.Vec3, radius float64) {
	type anchor struct {
		i                 int
		position, forward mgl64.Vec3
	}
	anchors := make([]anchor, 4)
	for i := range anchors {
		theta := float64(i) * math.Pi / 2
		pos := centre.Add(mgl64.Vec3{radius * math.Cos(theta), 0, radius * math.Sin(theta)})
		forward := mgl64.Vec3{-math.Sin(theta), 0, math.Cos(theta)}
		anchors[i] = anchor{b.anchor(pos, forward), pos, forward}
	}
	for i, a := range anchors {
		next := anchors[(i+1)%len(anchors)]
		b.join(a.i, next.i, a.position, a.forward, next.position, next.forward, kappa*radius)
	}
}

// line adds n anchors spaced along +Z from origin, joined by straight curves.
func (b *builder) line(origin mgl64.Vec3, n int, spacing float64) {
	forward := mgl64.Vec3{0, 0, 1}
	prev := -1
	var prevPos mgl64.Vec3
	for k := 0; k < n; k++ {
		pos := origin.Add(forward.Mul(float64(k) * spacing))
		i := b.anchor(pos, forward)
		if prev != -1 {
			b.join(prev, i, prevPos, forward, pos, forward, spacing/3)
		}
		prev, prevPos = i, pos
	}
}

// Loop is a closed loop of four curves around the origin, approximating a circle of the given radius.
// Anchors 0 to 3 sit at angles 0, 90, 180, and 270 degrees from +X toward +Z.
func Loop(radius float64) points.Topology {
	var b builder
	b.loop(mgl64.Vec3{}, radius)
	return b.t
}

// Line is n anchors along +Z, spacing apart.
func Line(n int, spacing float64) points.Topology {
	var b builder
	b.line(mgl64.Vec3{}, n, spacing)
	return b.t
}

// LoopWithSiding is Loop plus a two-anchor line placed away from it and not connected to it.
// Its rail nodes are 4 and 5.
func LoopWithSiding(radius float64) points.Topology {
	var b builder
	b.loop(mgl64.Vec3{}, radius)
	b.line(mgl64.Vec3{3 * radius, 0, 0}, 2, radius)
	return b.t
}

// Graph loads t, failing if any point or curve was rejected.
func Graph(t points.Topology) (*points.Graph, error) {
	g, errs := points.Load(t)
	if err := multierr.Combine(errs...); err != nil {
		return nil, fmt.Errorf("load preset: %w", err)
	}
	return g, nil
}

// LoopLength is the approximate length of Loop(radius).
func LoopLength(radius float64) float64 {
	return 2 * math.Pi * radius
}
