// Package config reads scene files: a layout plus the waypoints, vehicles, and routing tables on it.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"nyiyui.ca/hato/daisha/bogie"
	"nyiyui.ca/hato/daisha/network"
	"nyiyui.ca/hato/daisha/points"
	"nyiyui.ca/hato/daisha/route"
)

type Scene struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Topology points.Topology `json:"topology"`
	// Seed seeds random dispatchers. Zero picks one from the clock.
	Seed      int64            `json:"seed"`
	Waypoints []Waypoint       `json:"waypoints"`
	Vehicles  []Vehicle        `json:"vehicles"`
	Tables    map[string]Table `json:"tables"`
}

type WaypointKind string

const (
	KindStation WaypointKind = "station"
	KindMarker  WaypointKind = "marker"
)

type Waypoint struct {
	Name     string       `json:"name"`
	Kind     WaypointKind `json:"kind"`
	Position [3]float64   `json:"position"`
	// Pass makes vehicles run through a station without stopping.
	Pass bool `json:"pass,omitempty"`
}

type Vehicle struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Speed        float64    `json:"speed"`
	MaxSpeed     float64    `json:"max-speed"`
	Acceleration float64    `json:"acceleration"`
	Offset       [3]float64 `json:"offset"`
	// Leader is the vehicle this one follows, if any.
	Leader         uuid.NullUUID `json:"leader"`
	FollowDistance float64       `json:"follow-distance"`
	Start          Start         `json:"start"`
	Heading        [3]float64    `json:"heading"`
	// Table names the routing table driving this vehicle. Empty means random destinations.
	Table string `json:"table,omitempty"`
}

// Start is where a vehicle stands before its first route.
type Start struct {
	// Anchor is a point index into the topology.
	Anchor int    `json:"anchor"`
	Side   string `json:"side"`
}

type Table struct {
	Entries []Entry `json:"entries"`
}

type Entry struct {
	Waypoint string `json:"waypoint"`
	Side     string `json:"side"`
	// Leave is "timer" (default) or "event".
	Leave string `json:"leave,omitempty"`
	// Wait is in seconds.
	Wait float64 `json:"wait,omitempty"`
}

func vec(v [3]float64) mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }

// Load reads and validates the scene at path.
func Load(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, fmt.Errorf("read scene: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Scene{}, fmt.Errorf("scene %s: %w", path, err)
	}
	return s, nil
}

func Parse(data []byte) (Scene, error) {
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return Scene{}, fmt.Errorf("parse scene: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scene{}, err
	}
	return s, nil
}

// Validate checks references between the parts of s.
// Every problem found is reported, not just the first.
// Convoy shape (cycles, branches) is checked when the simulation is built.
func (s *Scene) Validate() error {
	var err error
	names := map[string]bool{}
	for i, wp := range s.Waypoints {
		if wp.Name == "" {
			err = multierr.Append(err, fmt.Errorf("waypoint %d: no name", i))
		} else if names[wp.Name] {
			err = multierr.Append(err, fmt.Errorf("waypoint %s: duplicate name", wp.Name))
		}
		names[wp.Name] = true
		switch wp.Kind {
		case KindStation, KindMarker:
		default:
			err = multierr.Append(err, fmt.Errorf("waypoint %s: unknown kind %q", wp.Name, wp.Kind))
		}
	}
	for name, t := range s.Tables {
		for i, e := range t.Entries {
			if !names[e.Waypoint] {
				err = multierr.Append(err, fmt.Errorf("table %s entry %d: unknown waypoint %q", name, i, e.Waypoint))
			}
			if _, err2 := e.Entry(); err2 != nil {
				err = multierr.Append(err, fmt.Errorf("table %s entry %d: %w", name, i, err2))
			}
		}
	}
	ids := map[uuid.UUID]bool{}
	for _, v := range s.Vehicles {
		if v.ID != uuid.Nil {
			if ids[v.ID] {
				err = multierr.Append(err, fmt.Errorf("vehicle %s: duplicate id", v.ID))
			}
			ids[v.ID] = true
		}
	}
	for i, v := range s.Vehicles {
		if v.Leader.Valid {
			if !ids[v.Leader.UUID] {
				err = multierr.Append(err, fmt.Errorf("vehicle %d (%s): unknown leader %s", i, v.Name, v.Leader.UUID))
			}
			if v.FollowDistance <= 0 {
				err = multierr.Append(err, fmt.Errorf("vehicle %d (%s): follow distance must be positive", i, v.Name))
			}
			continue
		}
		if v.Table != "" {
			if _, ok := s.Tables[v.Table]; !ok {
				err = multierr.Append(err, fmt.Errorf("vehicle %d (%s): unknown table %q", i, v.Name, v.Table))
			}
		}
		if v.Start.Anchor < 0 || v.Start.Anchor >= len(s.Topology.Points) || s.Topology.Points[v.Start.Anchor].Kind != points.KindAnchor {
			err = multierr.Append(err, fmt.Errorf("vehicle %d (%s): start %d is not an anchor", i, v.Name, v.Start.Anchor))
		}
		if _, err2 := route.ParseSide(v.Start.Side); err2 != nil {
			err = multierr.Append(err, fmt.Errorf("vehicle %d (%s): %w", i, v.Name, err2))
		}
	}
	return err
}

// Waypoint makes the network waypoint described by wp.
func (wp Waypoint) Waypoint() network.Waypoint {
	switch wp.Kind {
	case KindMarker:
		return network.NewMarker(wp.Name, vec(wp.Position))
	default:
		st := network.NewStation(wp.Name, vec(wp.Position))
		st.Pass = wp.Pass
		return st
	}
}

func (e Entry) Entry() (bogie.Entry, error) {
	side, err := route.ParseSide(e.Side)
	if err != nil {
		return bogie.Entry{}, err
	}
	leave, err := bogie.ParseLeave(e.Leave)
	if err != nil {
		return bogie.Entry{}, err
	}
	if e.Wait < 0 {
		return bogie.Entry{}, fmt.Errorf("negative wait %f", e.Wait)
	}
	return bogie.Entry{Waypoint: e.Waypoint, Side: side, Leave: leave, Wait: e.Wait}, nil
}

// RoutingTable makes a fresh routing table from t. Each vehicle needs its own.
func (t Table) RoutingTable() (*bogie.RoutingTable, error) {
	entries := make([]bogie.Entry, len(t.Entries))
	for i, e := range t.Entries {
		var err error
		entries[i], err = e.Entry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return bogie.NewRoutingTable(entries), nil
}

// Conf fills in everything in a bogie.Conf except the start node and dispatcher, which depend on the network.
func (v Vehicle) Conf() bogie.Conf {
	return bogie.Conf{
		ID:           v.ID,
		Name:         v.Name,
		Speed:        v.Speed,
		MaxSpeed:     v.MaxSpeed,
		Acceleration: v.Acceleration,
		Offset:       vec(v.Offset),
		Heading:      vec(v.Heading),
	}
}
