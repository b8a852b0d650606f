package points

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nyiyui.ca/hato/daisha/curve"
)

// facingX faces +X.
var facingX = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})

// bend builds one curve from the origin (facing +Z) to (10, 0, 10) (facing +X).
func bend(t *testing.T) (*Graph, int) {
	g := New()
	a := g.AddAnchor(mgl64.Vec3{}, mgl64.QuatIdent())
	b := g.AddAnchor(mgl64.Vec3{10, 0, 10}, facingX)
	ac := g.AddControl(a, 4, false)
	bc := g.AddControl(b, 4, true)
	i, err := g.AddCurve(CurveRef{Start: a, StartControl: ac, EndControl: bc, End: b})
	require.NoError(t, err)
	return g, i
}

func TestControlPosition(t *testing.T) {
	g, _ := bend(t)
	c, ok := g.Control(3)
	require.True(t, ok)
	assert.True(t, c.Position.ApproxEqualThreshold(mgl64.Vec3{6, 0, 10}, 1e-9), "got %v", c.Position)
}

func TestMoveControl(t *testing.T) {
	g := New()
	a := g.AddAnchor(mgl64.Vec3{}, mgl64.QuatIdent())
	front := g.AddControl(a, 2, false)
	back := g.AddControl(a, 3, true)
	g.MoveControl(front, mgl64.Vec3{2, 0, 0})
	anchor, _ := g.Anchor(a)
	assert.True(t, curve.Forward(anchor.Rotation).ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9))
	assert.True(t, curve.Up(anchor.Rotation).ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
	b, _ := g.Control(back)
	assert.True(t, b.Position.ApproxEqualThreshold(mgl64.Vec3{-3, 0, 0}, 1e-9), "got %v", b.Position)

	// moving the flipped one points the anchor away from it
	g.MoveControl(back, mgl64.Vec3{0, 0, 3})
	assert.True(t, curve.Forward(anchor.Rotation).ApproxEqualThreshold(mgl64.Vec3{0, 0, -1}, 1e-9))
	f, _ := g.Control(front)
	assert.True(t, f.Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, -2}, 1e-9), "got %v", f.Position)
}

func TestStale(t *testing.T) {
	g, i := bend(t)
	if _, err := g.Curve(i); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale before rebuild, got %v", err)
	}
	if n := g.Rebuild(); n != 1 {
		t.Fatalf("rebuilt %d curves, expected 1", n)
	}
	c, err := g.Curve(i)
	require.NoError(t, err)
	before := c.Length()

	g.MoveAnchor(0, mgl64.Vec3{0, 0, -5}, mgl64.QuatIdent())
	if !g.Dirty() {
		t.Fatal("graph should be dirty after moving an anchor")
	}
	if _, err := g.Curve(i); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale after move, got %v", err)
	}
	ctl, _ := g.Control(2)
	assert.True(t, ctl.Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, -1}, 1e-9))
	g.Rebuild()
	c, err = g.Curve(i)
	require.NoError(t, err)
	assert.Greater(t, c.Length(), before)
	if n := g.Rebuild(); n != 0 {
		t.Fatalf("second rebuild touched %d curves", n)
	}

	if _, err := g.Curve(42); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestAddCurveInvalid(t *testing.T) {
	g, _ := bend(t)
	c := g.AddAnchor(mgl64.Vec3{20, 0, 0}, mgl64.QuatIdent())
	cc := g.AddControl(c, 1, false)
	cases := map[string]CurveRef{
		"same":      {Start: 0, StartControl: 2, EndControl: 2, End: 0},
		"reused":    {Start: 0, StartControl: 2, EndControl: cc, End: c},
		"foreign":   {Start: c, StartControl: 2, EndControl: cc, End: 1},
		"notAnchor": {Start: 2, StartControl: 2, EndControl: cc, End: c},
		"missing":   {Start: 99, StartControl: 2, EndControl: cc, End: c},
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := g.AddCurve(ref); !errors.Is(err, ErrInvalidCurve) {
				t.Fatalf("expected ErrInvalidCurve, got %v", err)
			}
		})
	}
}

func TestConnect(t *testing.T) {
	g := New()
	a := g.AddAnchor(mgl64.Vec3{}, mgl64.QuatIdent())
	b := g.AddAnchor(mgl64.Vec3{0, 0, 9}, mgl64.QuatIdent())
	i, err := g.Connect(b, a)
	require.NoError(t, err)
	ref, _ := g.CurveRef(i)
	sc, _ := g.Control(ref.StartControl)
	ec, _ := g.Control(ref.EndControl)
	assert.True(t, sc.Flipped)
	assert.False(t, ec.Flipped)
	assert.True(t, sc.Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, 6}, 1e-9))
	assert.True(t, ec.Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, 3}, 1e-9))
	g.Rebuild()
	c, err := g.Curve(i)
	require.NoError(t, err)
	assert.InDelta(t, 9, c.Length(), 1e-9)
}

func TestSplit(t *testing.T) {
	g, i := bend(t)
	g.Rebuild()
	orig, err := g.Curve(i)
	require.NoError(t, err)
	origLength := orig.Length()
	samples := make([]mgl64.Vec3, 0, 11)
	for k := 0; k <= 10; k++ {
		samples = append(samples, orig.PositionAt(float64(k)/10))
	}

	mid, err := g.Split(i, 0.5)
	require.NoError(t, err)
	if diff := cmp.Diff([]int{0, 1}, g.Curves()); diff != "" {
		t.Fatalf("curves (-want +got):\n%s", diff)
	}
	g.Rebuild()
	left, err := g.Curve(0)
	require.NoError(t, err)
	right, err := g.Curve(1)
	require.NoError(t, err)
	for k := 0; k <= 5; k++ {
		got := left.PositionAt(float64(k) / 5)
		assert.True(t, got.ApproxEqualThreshold(samples[k], 1e-9), "left %d: %v != %v", k, got, samples[k])
		got = right.PositionAt(float64(k) / 5)
		assert.True(t, got.ApproxEqualThreshold(samples[k+5], 1e-9), "right %d: %v != %v", k, got, samples[k+5])
	}
	assert.InDelta(t, origLength, left.Length()+right.Length(), 1e-3)

	anchor, ok := g.Anchor(mid)
	require.True(t, ok)
	assert.Len(t, anchor.Controls, 2)
	ref, _ := g.CurveRef(1)
	assert.Equal(t, mid, ref.Start)
	assert.Equal(t, Handle(1), ref.End)

	if _, err := g.Split(0, 1); err == nil {
		t.Fatal("split at t=1 should fail")
	}
	if _, err := g.Split(7, 0.5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	g, i := bend(t)
	g.Remove(3)
	if _, ok := g.Point(3); ok {
		t.Fatal("control still present")
	}
	if _, ok := g.CurveRef(i); ok {
		t.Fatal("curve through removed control still present")
	}
	b, _ := g.Anchor(1)
	assert.Empty(t, b.Controls)

	g2, _ := bend(t)
	g2.Remove(0)
	assert.Empty(t, g2.Curves())
	if _, ok := g2.Point(2); ok {
		t.Fatal("control of removed anchor still present")
	}
	if diff := cmp.Diff([]Handle{1}, g2.Anchors()); diff != "" {
		t.Fatalf("anchors (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	g := New()
	a := g.AddAnchor(mgl64.Vec3{}, mgl64.QuatIdent())
	b := g.AddAnchor(mgl64.Vec3{0, 0, 10}, mgl64.QuatIdent())
	c := g.AddAnchor(mgl64.Vec3{0, 0, 10.1}, mgl64.QuatIdent())
	d := g.AddAnchor(mgl64.Vec3{0, 0, 20}, mgl64.QuatIdent())
	ab, err := g.Connect(a, b)
	require.NoError(t, err)
	cd, err := g.Connect(c, d)
	require.NoError(t, err)

	require.NoError(t, g.Merge(b, c))
	if _, ok := g.Point(c); ok {
		t.Fatal("dropped anchor still present")
	}
	ref, ok := g.CurveRef(cd)
	require.True(t, ok)
	assert.Equal(t, b, ref.Start)
	ctl, _ := g.Control(ref.StartControl)
	assert.Equal(t, b, ctl.Owner)
	assert.False(t, ctl.Flipped)
	assert.True(t, ctl.Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, 10.1 + 9.9/3}, 1e-9), "got %v", ctl.Position)
	anchor, _ := g.Anchor(b)
	assert.Len(t, anchor.Controls, 2)

	// folding one end of a curve onto the other removes the curve
	require.NoError(t, g.Merge(a, b))
	if _, ok := g.CurveRef(ab); ok {
		t.Fatal("degenerate curve survived merge")
	}
	ref, ok = g.CurveRef(cd)
	require.True(t, ok)
	assert.Equal(t, a, ref.Start)
	anchor, _ = g.Anchor(a)
	assert.Len(t, anchor.Controls, 1)
}

func TestLoad(t *testing.T) {
	topo := Topology{
		Points: []PointRecord{
			{Kind: KindAnchor, Position: [3]float64{0, 0, 0}, Rotation: [4]float64{0, 0, 0, 1}},
			{Kind: KindControl, Position: [3]float64{0, 0, 3}},
			{Kind: KindControl, Position: [3]float64{0, 0, 7}, Flipped: true},
			{Kind: KindAnchor, Position: [3]float64{0, 0, 10}},
			{Kind: KindControl, Position: [3]float64{0, 0, 12}},
			{Kind: "bogus"},
		},
		Curves: []CurveRecord{
			{0, 1, 2, 3},
			{3, 4, 2, 17},
			{1, 4, 2, 3},
			{3, 5, 1, 0},
		},
	}
	g, errs := Load(topo)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0].Error(), "unknown kind")
	assert.ErrorIs(t, errs[1], ErrIndexOutOfRange)
	assert.ErrorIs(t, errs[2], ErrInvalidCurve)
	assert.ErrorIs(t, errs[3], ErrInvalidCurve)

	c, err := g.Curve(0)
	require.NoError(t, err)
	assert.InDelta(t, 10, c.Length(), 1e-9)
	for i := 1; i < 4; i++ {
		if _, err := g.Curve(i); !errors.Is(err, ErrInvalidCurve) {
			t.Errorf("curve %d: expected ErrInvalidCurve, got %v", i, err)
		}
	}
	if _, ok := g.Point(4); ok {
		t.Fatal("unused control should be dropped")
	}
	ctl, ok := g.Control(2)
	require.True(t, ok)
	assert.Equal(t, Handle(3), ctl.Owner)
	assert.InDelta(t, 3, ctl.Distance, 1e-9)
	if i, ok := g.CurveContaining(2); !ok || i != 0 {
		t.Fatalf("CurveContaining(2) = %d, %t", i, ok)
	}
}

func TestLoadRejectedDetaches(t *testing.T) {
	topo := Topology{
		Points: []PointRecord{
			{Kind: KindAnchor, Position: [3]float64{0, 0, 0}, Rotation: [4]float64{0, 0, 0, 1}},
			{Kind: KindControl, Position: [3]float64{0, 0, 3}},
			{Kind: KindControl, Position: [3]float64{0, 0, 7}, Flipped: true},
			{Kind: KindAnchor, Position: [3]float64{0, 0, 10}, Rotation: [4]float64{0, 0, 0, 1}},
			{Kind: KindControl, Position: [3]float64{0, 0, 4}},
		},
		Curves: []CurveRecord{
			{0, 1, 2, 3},
			// control 2 is taken by curve 0
			{0, 4, 2, 3},
			{0, 4, 4, 3},
		},
	}
	g, errs := Load(topo)
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInvalidCurve)
	}
	a, ok := g.Anchor(0)
	require.True(t, ok)
	assert.Equal(t, []Handle{1}, a.Controls)
	if _, ok := g.Point(4); ok {
		t.Fatal("control of rejected curves should be dropped")
	}
	if _, err := g.Curve(0); err != nil {
		t.Fatalf("curve 0: %s", err)
	}
}
