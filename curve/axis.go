package curve

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Local axes. Forward is +Z, up is +Y, right is +X.
var (
	axisForward = mgl64.Vec3{0, 0, 1}
	axisUp      = mgl64.Vec3{0, 1, 0}
	axisRight   = mgl64.Vec3{1, 0, 0}
)

const epsilon = 1e-12

// Forward returns the local forward axis of q in world space.
func Forward(q mgl64.Quat) mgl64.Vec3 { return q.Rotate(axisForward) }

// Up returns the local up axis of q in world space.
func Up(q mgl64.Quat) mgl64.Vec3 { return q.Rotate(axisUp) }

// Right returns the local right axis of q in world space.
func Right(q mgl64.Quat) mgl64.Vec3 { return q.Rotate(axisRight) }

// Down returns the local down axis of q in world space.
func Down(q mgl64.Quat) mgl64.Vec3 { return q.Rotate(axisUp.Mul(-1)) }

// LookRotation returns the rotation whose forward axis is forward and whose up axis is as close to up as possible.
// A zero forward yields the identity rotation.
func LookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	if forward.Len() < epsilon {
		return mgl64.QuatIdent()
	}
	z := forward.Normalize()
	x := up.Cross(z)
	if x.Len() < 1e-9 {
		// up is parallel to forward; any perpendicular will do
		x = axisForward.Cross(z)
		if x.Len() < 1e-9 {
			x = axisRight
		}
	}
	x = x.Normalize()
	y := z.Cross(x)
	m := mgl64.Mat3FromCols(x, y, z)
	return mgl64.Mat4ToQuat(m.Mat4()).Normalize()
}

// Slerp spherically interpolates between a and b along the shorter arc.
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t)
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}
