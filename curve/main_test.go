package curve

import (
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func straight() *Curve {
	return New(
		mgl64.Vec3{0, 0, 0},
		mgl64.Vec3{0, 0, 3},
		mgl64.Vec3{0, 0, 7},
		mgl64.Vec3{0, 0, 10},
		mgl64.QuatIdent(),
		mgl64.QuatIdent(),
	)
}

func bend() *Curve {
	return New(
		mgl64.Vec3{0, 0, 0},
		mgl64.Vec3{0, 0, 8},
		mgl64.Vec3{2, 1, 10},
		mgl64.Vec3{10, 1, 10},
		mgl64.QuatIdent(),
		mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}),
	)
}

func TestStraightLength(t *testing.T) {
	c := straight()
	c.Rebuild(DefaultTableSegments)
	assert.InDelta(t, 10, c.Length(), 1e-9)
	assert.InDelta(t, 5, c.LengthAt(0.5), 1e-2)
	assert.True(t, c.TangentAt(0.3).ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-9))
	assert.True(t, c.NormalAt(0.3).ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
}

func TestDistanceTableMonotonic(t *testing.T) {
	for _, segments := range []int{-1, 0, 1, 2, 3, 16, DefaultTableSegments} {
		t.Run(fmt.Sprintf("%d", segments), func(t *testing.T) {
			c := bend()
			c.Rebuild(segments)
			table := c.Table()
			if len(table) < 2 {
				t.Fatalf("table too short: %d", len(table))
			}
			if table[0] != 0 {
				t.Fatalf("first entry %f, expected 0", table[0])
			}
			if table[len(table)-1] != c.Length() {
				t.Fatalf("last entry %f, expected %f", table[len(table)-1], c.Length())
			}
			for i := 0; i+1 < len(table); i++ {
				if table[i] > table[i+1] {
					t.Fatalf("table not monotonic at %d: %f > %f", i, table[i], table[i+1])
				}
			}
		})
	}
}

func TestDistanceToTRoundTrip(t *testing.T) {
	for name, c := range map[string]*Curve{"straight": straight(), "bend": bend()} {
		t.Run(name, func(t *testing.T) {
			c.Rebuild(DefaultTableSegments)
			for i := 0; i <= 50; i++ {
				want := float64(i) / 50
				got, ok := c.DistanceToT(c.LengthAt(want))
				if !ok {
					t.Fatalf("t=%f: lookup failed", want)
				}
				assert.InDelta(t, want, got, 1e-3, "t=%f", want)
			}
		})
	}
}

func TestDistanceToTOutOfRange(t *testing.T) {
	c := bend()
	c.Rebuild(DefaultTableSegments)
	for _, d := range []float64{-1, c.Length() + 1, math.NaN()} {
		if _, ok := c.DistanceToT(d); ok {
			t.Errorf("distance %f: expected lookup to fail", d)
		}
		if i := c.Bracket(d); i != -1 {
			t.Errorf("distance %f: expected sentinel, got %d", d, i)
		}
	}
	got, ok := c.DistanceToT(c.Length())
	assert.True(t, ok)
	assert.InDelta(t, 1, got, 1e-9)
	got, ok = c.DistanceToT(0)
	assert.True(t, ok)
	assert.InDelta(t, 0, got, 1e-9)
}

func TestDistanceToTClear(t *testing.T) {
	c := bend()
	if !c.IsClear() {
		t.Fatal("fresh curve should have no table")
	}
	if _, ok := c.DistanceToT(0); ok {
		t.Fatal("lookup on a curve without a table should fail")
	}
}

func TestOrientation(t *testing.T) {
	c := straight()
	q := c.OrientationAt(0.5, false)
	assert.True(t, Forward(q).ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-9))
	assert.True(t, Up(q).ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
	q = c.OrientationAt(0.5, true)
	assert.True(t, Forward(q).ApproxEqualThreshold(mgl64.Vec3{0, 0, -1}, 1e-9))
	assert.True(t, Up(q).ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
}

func TestNormalContinuous(t *testing.T) {
	c := bend()
	prev := c.NormalAt(0)
	for i := 1; i <= 100; i++ {
		n := c.NormalAt(float64(i) / 100)
		assert.InDelta(t, 1, n.Len(), 1e-9)
		assert.InDelta(t, 0, n.Dot(c.TangentAt(float64(i)/100)), 1e-9)
		if n.Dot(prev) < 0.9 {
			t.Fatalf("normal jumped at %d: %v → %v", i, prev, n)
		}
		prev = n
	}
}

func TestInvalidPanics(t *testing.T) {
	var c Curve
	if !c.IsInvalid() {
		t.Fatal("zero curve should be invalid")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	c.PositionAt(0.5)
}

func TestLookRotationDegenerate(t *testing.T) {
	q := LookRotation(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0})
	assert.True(t, Forward(q).ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
	assert.InDelta(t, 1, q.Len(), 1e-9)
}
