package network

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nyiyui.ca/hato/daisha/points"
	"nyiyui.ca/hato/daisha/preset"
	"nyiyui.ca/hato/daisha/route"
)

func loop(t *testing.T, waypoints ...Waypoint) *Network {
	g, err := preset.Graph(preset.Loop(10))
	require.NoError(t, err)
	n, err := Build(g, waypoints)
	require.NoError(t, err)
	return n
}

func TestBuildLoop(t *testing.T) {
	n := loop(t)
	require.Len(t, n.Nodes, 4)
	type edge struct {
		Target  route.NodeRef
		CurveI  int
		Reverse bool
	}
	var got []edge
	for _, nb := range n.Neighbours(route.NodeRef{Node: 0, Side: route.SideA}) {
		got = append(got, edge{nb.Target, nb.CurveI, nb.Reverse})
	}
	want := []edge{
		{route.NodeRef{Node: 1, Side: route.SideA}, 0, false},
		{route.NodeRef{Node: 3, Side: route.SideA}, 3, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("edges (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(n.Nodes[0].Sub[route.SideA], n.Nodes[0].Sub[route.SideB], cmp.Comparer(func(a, b Neighbour) bool {
		return a.Target == b.Target && a.CurveI == b.CurveI
	})); diff != "" {
		t.Fatalf("sides differ (-A +B):\n%s", diff)
	}

	forward := n.Neighbours(route.NodeRef{Node: 0, Side: route.SideA})[0]
	assert.True(t, forward.Leaving.ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-9), "leaving %v", forward.Leaving)
	// node 1 faces -X, and its back control points +X
	assert.True(t, forward.Entering.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9), "entering %v", forward.Entering)
	assert.InDelta(t, math.Pi*5, forward.Distance, 0.05)

	for i := range n.Nodes {
		assert.True(t, n.Reachable(route.NodeRef{Node: i, Side: route.SideA}))
		assert.False(t, n.Reachable(route.NodeRef{Node: i, Side: route.SideB}))
	}
}

func TestBuildStale(t *testing.T) {
	g, err := preset.Graph(preset.Loop(10))
	require.NoError(t, err)
	a, _ := g.Anchor(0)
	g.MoveAnchor(0, a.Position.Add(mgl64.Vec3{0, 1, 0}), a.Rotation)
	if _, err := Build(g, nil); !errors.Is(err, points.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	g.Rebuild()
	if _, err := Build(g, nil); err != nil {
		t.Fatalf("after rebuild: %s", err)
	}
}

func TestNearest(t *testing.T) {
	n := loop(t)
	ref, ok := n.Nearest(mgl64.Vec3{0.5, 0, 9}, mgl64.QuatIdent(), PreferAuto)
	require.True(t, ok)
	assert.Equal(t, route.NodeRef{Node: 1, Side: route.SideA}, ref)
	facingX := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	ref, _ = n.Nearest(mgl64.Vec3{0.5, 0, 9}, facingX, PreferAuto)
	assert.Equal(t, route.NodeRef{Node: 1, Side: route.SideB}, ref)
	ref, _ = n.Nearest(mgl64.Vec3{0.5, 0, 9}, facingX, PreferA)
	assert.Equal(t, route.NodeRef{Node: 1, Side: route.SideA}, ref)

	var empty Network
	if _, ok := empty.Nearest(mgl64.Vec3{}, mgl64.QuatIdent(), PreferAuto); ok {
		t.Fatal("nearest on empty network")
	}
}

func TestRandom(t *testing.T) {
	n := loop(t)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		ref, ok := n.Random(rng)
		require.True(t, ok)
		assert.True(t, n.Reachable(ref), "unreachable %s", ref)
	}
}

func TestByAnchor(t *testing.T) {
	g, err := preset.Graph(preset.LoopWithSiding(10))
	require.NoError(t, err)
	n, err := Build(g, nil)
	require.NoError(t, err)
	anchors := g.Anchors()
	i, ok := n.ByAnchor(anchors[4])
	require.True(t, ok)
	assert.Equal(t, 4, i)
	node, ok := n.Node(i)
	require.True(t, ok)
	assert.Equal(t, anchors[4], node.Anchor)
	_, ok = n.Node(6)
	assert.False(t, ok)
}

func TestWaypoints(t *testing.T) {
	east := NewStation("east", mgl64.Vec3{10, 0, 0.3})
	west := NewStation("west", mgl64.Vec3{-10, 0, 0})
	west.Pass = true
	north := NewMarker("north", mgl64.Vec3{0, 0, 11})
	n := loop(t, west, north, east)

	var names []string
	for _, wp := range n.Waypoints() {
		names = append(names, wp.Name())
	}
	if diff := cmp.Diff([]string{"east", "north", "west"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	wp, ok := n.Waypoint("east")
	require.True(t, ok)
	assert.Equal(t, 0, wp.Node())
	assert.True(t, wp.ShouldStop())
	assert.Equal(t, 2, west.Node())
	assert.False(t, west.ShouldStop())
	assert.Equal(t, 1, north.Node())
	assert.False(t, north.ShouldStop())

	assert.False(t, east.TakeRelease())
	east.Go()
	assert.False(t, east.TakeRelease(), "released with nothing stopped")
	east.SetStopped(true)
	east.Go()
	assert.True(t, east.TakeRelease())
	assert.False(t, east.TakeRelease())
	east.Go()
	east.SetStopped(false)
	east.SetStopped(true)
	assert.False(t, east.TakeRelease(), "release carried over to the next stop")

	g, err := preset.Graph(preset.Loop(10))
	require.NoError(t, err)
	if _, err := Build(g, []Waypoint{NewMarker("a", mgl64.Vec3{}), NewMarker("a", mgl64.Vec3{})}); err == nil {
		t.Fatal("duplicate waypoint accepted")
	}
}
