// Package curve evaluates cubic Bezier track segments and maps travelled distance back to curve parameters.
package curve

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// lengthStep is the parameter step used when integrating arc length.
const lengthStep = 1e-4

// DefaultTableSegments is the number of distance samples kept per curve unless told otherwise.
const DefaultTableSegments = 128

// Curve is a cubic Bezier between two anchors.
// The zero value is invalid; use New.
type Curve struct {
	Start        mgl64.Vec3
	StartControl mgl64.Vec3
	EndControl   mgl64.Vec3
	End          mgl64.Vec3
	// StartRotation and EndRotation are the orientations of the start and end anchors.
	// They only affect NormalAt and OrientationAt.
	StartRotation mgl64.Quat
	EndRotation   mgl64.Quat

	valid   bool
	length  float64
	table   []float64
	halfway int
}

func New(start, startControl, endControl, end mgl64.Vec3, startRotation, endRotation mgl64.Quat) *Curve {
	return &Curve{
		Start:         start,
		StartControl:  startControl,
		EndControl:    endControl,
		End:           end,
		StartRotation: startRotation.Normalize(),
		EndRotation:   endRotation.Normalize(),
		valid:         true,
	}
}

func (c *Curve) String() string {
	if c.IsInvalid() {
		return "curve(invalid)"
	}
	return fmt.Sprintf("curve(%v → %v l%.3f)", c.Start, c.End, c.length)
}

// IsInvalid reports whether c must not be evaluated.
func (c *Curve) IsInvalid() bool {
	return c == nil || !c.valid
}

// IsClear reports whether c has no distance table yet.
func (c *Curve) IsClear() bool {
	return c.IsInvalid() || len(c.table) == 0
}

func (c *Curve) mustValid() {
	if c.IsInvalid() {
		panic("evaluating invalid curve")
	}
}

// PositionAt returns the point at parameter t ∈ [0, 1].
func (c *Curve) PositionAt(t float64) mgl64.Vec3 {
	c.mustValid()
	t = clamp01(t)
	u := 1 - t
	return c.Start.Mul(u * u * u).
		Add(c.StartControl.Mul(3 * u * u * t)).
		Add(c.EndControl.Mul(3 * u * t * t)).
		Add(c.End.Mul(t * t * t))
}

func (c *Curve) derivativeAt(t float64) mgl64.Vec3 {
	u := 1 - t
	return c.StartControl.Sub(c.Start).Mul(3 * u * u).
		Add(c.EndControl.Sub(c.StartControl).Mul(6 * u * t)).
		Add(c.End.Sub(c.EndControl).Mul(3 * t * t))
}

// TangentAt returns the unit tangent at t, pointing from start to end.
func (c *Curve) TangentAt(t float64) mgl64.Vec3 {
	c.mustValid()
	t = clamp01(t)
	d := c.derivativeAt(t)
	if d.Len() < epsilon {
		// control points coincide with the anchor
		d = c.End.Sub(c.Start)
	}
	if d.Len() < epsilon {
		return Forward(c.StartRotation)
	}
	return d.Normalize()
}

// NormalAt returns the unit normal at t.
// The normal follows the down axis of the interpolated anchor orientations, so it stays continuous when the start and end orientations differ.
func (c *Curve) NormalAt(t float64) mgl64.Vec3 {
	t = clamp01(t)
	tangent := c.TangentAt(t)
	rot := Slerp(c.StartRotation, c.EndRotation, t)
	binormal := tangent.Cross(Down(rot))
	if binormal.Len() < 1e-9 {
		// vertical track
		binormal = Right(rot)
	}
	binormal = binormal.Normalize()
	return tangent.Cross(binormal).Normalize()
}

// OrientationAt returns the rotation looking along the tangent at t, or against it if flip is set.
func (c *Curve) OrientationAt(t float64, flip bool) mgl64.Quat {
	forward := c.TangentAt(t)
	if flip {
		forward = forward.Mul(-1)
	}
	return LookRotation(forward, c.NormalAt(t))
}

// Length returns the cached arc length.
// It is zero until ComputeLength or BuildDistanceTable has run.
func (c *Curve) Length() float64 {
	return c.length
}

// ComputeLength integrates the polyline length of the curve and caches it.
// This is meant to run once per edit, not per tick.
func (c *Curve) ComputeLength() float64 {
	c.length = c.LengthAt(1)
	return c.length
}

// LengthAt returns the arc length from the start of the curve to parameter t.
func (c *Curve) LengthAt(t float64) float64 {
	c.mustValid()
	t = clamp01(t)
	n := int(math.Ceil(t / lengthStep))
	if n == 0 {
		return 0
	}
	step := t / float64(n)
	var sum float64
	prev := c.Start
	for i := 1; i <= n; i++ {
		p := c.PositionAt(float64(i) * step)
		sum += p.Sub(prev).Len()
		prev = p
	}
	return sum
}

// Rebuild recomputes the arc length and the distance table.
func (c *Curve) Rebuild(segments int) {
	c.ComputeLength()
	c.BuildDistanceTable(segments)
}
