package network

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Waypoint is a named place on the network that vehicles can be sent to.
// Implemented by *Station and *Marker.
type Waypoint interface {
	Name() string
	Position() mgl64.Vec3
	// ShouldStop reports whether vehicles stop here.
	ShouldStop() bool
	// Stopped reports whether a vehicle is currently stopped here.
	Stopped() bool
	SetStopped(stopped bool)
	// Node is the nearest rail node, assigned by Build.
	Node() int
	// Go releases the vehicle stopped here, if any, when it waits for an event.
	Go()
	// TakeRelease reports and clears a pending Go.
	TakeRelease() bool
	setNode(i int)
}

type waypointBase struct {
	name     string
	position mgl64.Vec3
	stopped  bool
	node     int
	released bool
}

func (w *waypointBase) Name() string         { return w.name }
func (w *waypointBase) Position() mgl64.Vec3 { return w.position }
func (w *waypointBase) Stopped() bool        { return w.stopped }
func (w *waypointBase) Node() int            { return w.node }
func (w *waypointBase) setNode(i int)        { w.node = i }

// SetStopped also drops any pending Go, so a release never carries over to the next vehicle.
func (w *waypointBase) SetStopped(stopped bool) {
	w.stopped = stopped
	w.released = false
}

// Go does nothing unless a vehicle is stopped here.
func (w *waypointBase) Go() {
	if w.stopped {
		w.released = true
	}
}

func (w *waypointBase) TakeRelease() bool {
	r := w.released
	w.released = false
	return r
}

// Station is a platform. Vehicles stop here unless Pass is set.
type Station struct {
	waypointBase
	Pass bool
}

func NewStation(name string, position mgl64.Vec3) *Station {
	return &Station{waypointBase: waypointBase{name: name, position: position, node: -1}}
}

func (s *Station) ShouldStop() bool { return !s.Pass }

// Marker is a named point vehicles travel through without stopping.
type Marker struct {
	waypointBase
}

func NewMarker(name string, position mgl64.Vec3) *Marker {
	return &Marker{waypointBase: waypointBase{name: name, position: position, node: -1}}
}

func (*Marker) ShouldStop() bool { return false }
