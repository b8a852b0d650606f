package bogie

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/network"
	"nyiyui.ca/hato/daisha/route"
)

// Leave says when a stopped vehicle departs.
type Leave int

const (
	// LeaveTimer departs after the entry's wait.
	LeaveTimer Leave = iota
	// LeaveEvent departs when the waypoint's Go is called.
	LeaveEvent
)

func (l Leave) String() string {
	switch l {
	case LeaveTimer:
		return "timer"
	case LeaveEvent:
		return "event"
	default:
		return fmt.Sprintf("Leave(%d)", int(l))
	}
}

func ParseLeave(s string) (Leave, error) {
	switch s {
	case "", "timer":
		return LeaveTimer, nil
	case "event":
		return LeaveEvent, nil
	default:
		return 0, fmt.Errorf("unknown leave condition %q", s)
	}
}

// Leg is one destination handed out by a Dispatcher.
type Leg struct {
	Target route.NodeRef
	// Waypoint is nil for legs to arbitrary nodes.
	Waypoint network.Waypoint
	Leave    Leave
	// Wait is the hold time in seconds for LeaveTimer.
	Wait float64
}

// Stops reports whether the vehicle stops at the end of l.
func (l Leg) Stops() bool {
	return l.Waypoint != nil && l.Waypoint.ShouldStop()
}

// Dispatcher picks where a vehicle goes next.
type Dispatcher interface {
	Next(net *network.Network) (Leg, bool)
}

// RandomDispatcher sends vehicles to random nodes without stopping.
type RandomDispatcher struct {
	rng *rand.Rand
}

func NewRandomDispatcher(rng *rand.Rand) *RandomDispatcher {
	return &RandomDispatcher{rng: rng}
}

func (d *RandomDispatcher) Next(net *network.Network) (Leg, bool) {
	ref, ok := net.Random(d.rng)
	if !ok {
		return Leg{}, false
	}
	return Leg{Target: ref}, true
}

type Entry struct {
	Waypoint string
	Side     route.Side
	Leave    Leave
	Wait     float64
}

// RoutingTable hands out its entries in order, wrapping around at the end.
type RoutingTable struct {
	Entries []Entry
	next    int
}

func NewRoutingTable(entries []Entry) *RoutingTable {
	return &RoutingTable{Entries: entries}
}

func (t *RoutingTable) Next(net *network.Network) (Leg, bool) {
	if len(t.Entries) == 0 {
		return Leg{}, false
	}
	e := t.Entries[t.next]
	t.next = (t.next + 1) % len(t.Entries)
	wp, ok := net.Waypoint(e.Waypoint)
	if !ok {
		zap.S().Warnf("routing table: waypoint %q not found", e.Waypoint)
		return Leg{}, false
	}
	return Leg{
		Target:   route.NodeRef{Node: wp.Node(), Side: e.Side},
		Waypoint: wp,
		Leave:    e.Leave,
		Wait:     e.Wait,
	}, true
}
