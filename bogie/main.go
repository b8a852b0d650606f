// Package bogie moves vehicles along routes, alone or coupled into convoys.
//
// A convoy is a chain of vehicles. Its head routes itself and records every section it enters in a shared buffer; every other vehicle is placed a fixed distance behind the head on that buffer and never routes.
package bogie

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/curve"
	"nyiyui.ca/hato/daisha/network"
	"nyiyui.ca/hato/daisha/route"
	"nyiyui.ca/hato/daisha/router"
)

// arrivalTolerance is how close to the end of a leg counts as arrived.
const arrivalTolerance = 1e-3

// maxAttempts is how many legs a head tries per tick before giving up until the next tick.
const maxAttempts = 4

type State int

const (
	StateWaitingRoute State = iota
	StateRunning
	StateBraking
	StateHolding
	StateFollowing
)

func (s State) String() string {
	switch s {
	case StateWaitingRoute:
		return "waiting-route"
	case StateRunning:
		return "running"
	case StateBraking:
		return "braking"
	case StateHolding:
		return "holding"
	case StateFollowing:
		return "following"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Conf struct {
	ID   uuid.UUID
	Name string
	// Speed is the initial speed.
	Speed    float64
	MaxSpeed float64
	// Acceleration is used both ways. Zero or less means speed changes instantly.
	Acceleration float64
	// Offset is added to the track position in the vehicle's frame (right, up, forward).
	Offset mgl64.Vec3
	// Start and Heading place a vehicle before its first route.
	Start   route.NodeRef
	Heading mgl64.Vec3
	// Dispatcher may be nil for vehicles that only ever follow.
	Dispatcher Dispatcher
}

type Bogie struct {
	ID           uuid.UUID
	Name         string
	Speed        float64
	MaxSpeed     float64
	Acceleration float64
	Offset       mgl64.Vec3

	net        *network.Network
	router     *router.Router
	dispatcher Dispatcher
	state      State

	// as a head
	start     route.NodeRef
	heading   mgl64.Vec3
	route     route.Route
	scratch   route.Route
	travelled float64
	leg       Leg
	holdLeft  float64
	// shared is the convoy buffer; its front is the head's current section.
	shared route.Route

	// as a follower
	leader         *Bogie
	followers      []*Bogie
	followDistance float64
	section        route.Section
	local          float64
	placed         bool
}

func New(conf Conf, net *network.Network, r *router.Router) *Bogie {
	if conf.ID == uuid.Nil {
		conf.ID = uuid.New()
	}
	return &Bogie{
		ID:           conf.ID,
		Name:         conf.Name,
		Speed:        conf.Speed,
		MaxSpeed:     conf.MaxSpeed,
		Acceleration: conf.Acceleration,
		Offset:       conf.Offset,
		net:          net,
		router:       r,
		dispatcher:   conf.Dispatcher,
		start:        conf.Start,
		heading:      conf.Heading,
	}
}

func (b *Bogie) String() string {
	return fmt.Sprintf("bogie(%s %s)", b.Name, b.state)
}

func (b *Bogie) State() State { return b.state }

// Leg returns the leg a head is on.
func (b *Bogie) Leg() Leg { return b.leg }

// Route returns the remaining route of a head. The current section is first.
func (b *Bogie) Route() *route.Route { return &b.route }

// Tick advances b by dt seconds.
// A convoy's head must be ticked before the rest of the convoy within a step.
func (b *Bogie) Tick(dt float64) {
	if b.leader != nil {
		b.tickFollower()
		return
	}
	b.tickHead(dt)
}

func (b *Bogie) tickHead(dt float64) {
	if len(b.followers) > 0 && len(b.shared.Sections) == 0 && b.route.HasRoute() {
		b.shared.PushFront(b.route.Sections[0])
	}
	switch b.state {
	case StateWaitingRoute, StateFollowing:
		if !b.extend() {
			return
		}
		b.state = StateRunning
	case StateHolding:
		b.hold(dt)
		return
	}
	b.run(dt)
}

// origin is where the next leg starts from.
func (b *Bogie) origin() (route.NodeRef, mgl64.Vec3) {
	n := len(b.route.Sections)
	if n == 0 {
		return b.start, b.heading
	}
	last := b.route.Sections[n-1]
	if last.Curve != nil {
		panic(fmt.Sprintf("%s: route doesn't end with a terminal section", b))
	}
	if n == 1 {
		return last.Ref(), b.heading
	}
	return last.Ref(), router.Heading(b.route.Sections[n-2])
}

// extend asks the dispatcher for a leg and appends its route.
// Legs to arbitrary nodes are retried a few times; a leg to an unreachable waypoint ends the attempt until the next tick.
func (b *Bogie) extend() bool {
	if b.dispatcher == nil {
		return false
	}
	from, heading := b.origin()
	for k := 0; k < maxAttempts; k++ {
		leg, ok := b.dispatcher.Next(b.net)
		if !ok {
			continue
		}
		if b.router.Route(from, heading, leg.Target, &b.scratch) != route.StateSuccess {
			if leg.Waypoint == nil {
				continue
			}
			// the rest of the table waits for the next tick
			zap.S().Warnf("%s: no route %s → %s, skipping %s", b, from, leg.Target, leg.Waypoint.Name())
			return false
		}
		fresh := !b.route.HasRoute()
		if n := len(b.route.Sections); n > 0 {
			b.route.Sections = b.route.Sections[:n-1]
		}
		b.route.Sections = append(b.route.Sections, b.scratch.Sections...)
		b.route.State = route.StateSuccess
		b.leg = leg
		if fresh {
			b.travelled = 0
			b.entered()
		}
		zap.S().Debugf("%s: routed %s → %s (%.3f)", b, from, leg.Target, b.scratch.Length())
		return true
	}
	return false
}

func (b *Bogie) entered() {
	if len(b.followers) > 0 {
		b.shared.PushFront(b.route.Sections[0])
	}
}

func (b *Bogie) run(dt float64) {
	target := b.MaxSpeed
	if b.Acceleration <= 0 {
		b.Speed = target
	} else if b.Speed < target {
		b.Speed = math.Min(b.Speed+b.Acceleration*dt, target)
	} else {
		b.Speed = math.Max(b.Speed-b.Acceleration*dt, target)
	}
	if !b.leg.Stops() {
		b.advance(b.Speed * dt)
		return
	}
	remaining := math.Max(b.route.DistanceToEnd(b.travelled), 0)
	if b.Acceleration > 0 {
		if limit := math.Sqrt(2 * b.Acceleration * remaining); b.Speed > limit {
			b.Speed = limit
			b.state = StateBraking
		}
	}
	step := b.Speed * dt
	if remaining <= arrivalTolerance || step >= remaining {
		b.advance(remaining)
		b.arrive()
		return
	}
	b.advance(step)
}

// advance moves a head dist along its route, extending it at the end of non-stopping legs.
func (b *Bogie) advance(dist float64) {
	b.travelled += dist
	for {
		l := b.route.Sections[0].Length()
		if b.travelled <= l {
			return
		}
		if b.route.Sections[1].Curve == nil {
			if b.leg.Stops() {
				b.travelled = l
				return
			}
			if !b.extend() {
				b.travelled = l
				b.Speed = 0
				b.state = StateWaitingRoute
				return
			}
			continue
		}
		b.travelled -= l
		b.route.PopFront()
		b.entered()
	}
}

func (b *Bogie) arrive() {
	b.Speed = 0
	b.state = StateHolding
	b.holdLeft = b.leg.Wait
	b.leg.Waypoint.SetStopped(true)
	zap.S().Infof("%s: arrived at %s (leave on %s)", b, b.leg.Waypoint.Name(), b.leg.Leave)
}

func (b *Bogie) hold(dt float64) {
	wp := b.leg.Waypoint
	var release bool
	switch b.leg.Leave {
	case LeaveTimer:
		b.holdLeft -= dt
		release = b.holdLeft <= 0
	case LeaveEvent:
		release = wp.TakeRelease()
	}
	if !release {
		return
	}
	wp.SetStopped(false)
	zap.S().Infof("%s: departing %s", b, wp.Name())
	b.leg = Leg{}
	if b.extend() {
		b.state = StateRunning
	} else {
		b.state = StateWaitingRoute
	}
}

// Location returns the section b is on and how far along it b is.
func (b *Bogie) Location() (s route.Section, local float64, ok bool) {
	if b.leader != nil {
		return b.section, b.local, b.placed
	}
	if !b.route.HasRoute() {
		return route.Section{}, 0, false
	}
	return b.route.Sections[0], b.travelled, true
}

type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Pose returns where b is and which way it faces.
// ok is false if b has never been placed on a curve and isn't standing on a node.
func (b *Bogie) Pose() (Pose, bool) {
	if s, local, ok := b.Location(); ok {
		return PoseAt(s, local, b.Offset)
	}
	if b.leader != nil {
		return Pose{}, false
	}
	node, ok := b.net.Node(b.start.Node)
	if !ok {
		return Pose{}, false
	}
	rot := node.Rotation
	if b.heading.Len() > 0 {
		rot = curve.LookRotation(b.heading, curve.Up(node.Rotation))
	}
	return Pose{Position: node.Position.Add(rot.Rotate(b.Offset)), Rotation: rot}, true
}

// PoseAt places offset at local along s.
func PoseAt(s route.Section, local float64, offset mgl64.Vec3) (Pose, bool) {
	if s.Curve.IsClear() {
		return Pose{}, false
	}
	l := s.Curve.Length()
	d := math.Max(0, math.Min(local, l))
	if s.Reverse {
		d = l - d
	}
	t, ok := s.Curve.DistanceToT(d)
	if !ok {
		return Pose{}, false
	}
	rot := s.Curve.OrientationAt(t, s.Reverse)
	return Pose{
		Position: s.Curve.PositionAt(t).Add(rot.Rotate(offset)),
		Rotation: rot,
	}, true
}
