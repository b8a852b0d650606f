package sim

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

type Snapshot struct {
	Step int64 `json:"step"`
	// Time is simulated seconds since the start.
	Time      float64           `json:"time"`
	Vehicles  []VehicleSnapshot `json:"vehicles"`
	Waypoints []WaypointState   `json:"waypoints"`
}

type VehicleSnapshot struct {
	ID     uuid.UUID     `json:"id"`
	Name   string        `json:"name"`
	State  string        `json:"state"`
	Speed  float64       `json:"speed"`
	Leader uuid.NullUUID `json:"leader"`
	// Placed is false until the vehicle has a position; Position and Rotation are zero until then.
	Placed   bool       `json:"placed"`
	Position [3]float64 `json:"position"`
	// Rotation is x, y, z, w.
	Rotation [4]float64 `json:"rotation"`
	// Destination is the waypoint the vehicle is heading to or standing at.
	Destination string `json:"destination,omitempty"`
}

type WaypointState struct {
	Name    string `json:"name"`
	Stopped bool   `json:"stopped"`
}

func vec(v mgl64.Vec3) [3]float64 { return [3]float64{v[0], v[1], v[2]} }

func quat(q mgl64.Quat) [4]float64 { return [4]float64{q.V[0], q.V[1], q.V[2], q.W} }

// Snapshot describes the simulation as of the last Step.
func (s *Simulator) Snapshot() Snapshot {
	snap := Snapshot{
		Step:     s.step,
		Time:     s.elapsed,
		Vehicles: make([]VehicleSnapshot, len(s.vehicles)),
	}
	for i, b := range s.vehicles {
		vs := VehicleSnapshot{
			ID:    b.ID,
			Name:  b.Name,
			State: b.State().String(),
			Speed: b.Speed,
		}
		if l := b.Leader(); l != nil {
			vs.Leader = uuid.NullUUID{UUID: l.ID, Valid: true}
		}
		if pose, ok := b.Pose(); ok {
			vs.Placed = true
			vs.Position = vec(pose.Position)
			vs.Rotation = quat(pose.Rotation)
		}
		if wp := b.Head().Leg().Waypoint; wp != nil {
			vs.Destination = wp.Name()
		}
		snap.Vehicles[i] = vs
	}
	for _, wp := range s.Network.Waypoints() {
		snap.Waypoints = append(snap.Waypoints, WaypointState{Name: wp.Name(), Stopped: wp.Stopped()})
	}
	return snap
}
