package config

import (
	"github.com/google/uuid"
	"nyiyui.ca/hato/daisha/preset"
)

const demoRadius = 20

var (
	demoID     = uuid.MustParse("4f0c1b7e-3d4a-4a51-9a3e-0d6b2c1f5e01")
	demoHead   = uuid.MustParse("a3c9f0d2-6b1e-4f7a-8c2d-5e9b1a0f3c11")
	demoTail   = uuid.MustParse("a3c9f0d2-6b1e-4f7a-8c2d-5e9b1a0f3c12")
	demoRandom = uuid.MustParse("b7e2d4a1-9c3f-4e8b-a6d5-1f0c2e3b4a21")
)

// Demo is a loop with two stations, a two-car train shuttling between them, and a car wandering at random.
func Demo() Scene {
	return Scene{
		ID:       demoID,
		Name:     "demo",
		Topology: preset.Loop(demoRadius),
		Seed:     1,
		Waypoints: []Waypoint{
			{Name: "higashi", Kind: KindStation, Position: [3]float64{demoRadius, 0, 0}},
			{Name: "nishi", Kind: KindStation, Position: [3]float64{-demoRadius, 0, 0}},
			{Name: "kita", Kind: KindMarker, Position: [3]float64{0, 0, demoRadius}},
		},
		Tables: map[string]Table{
			"shuttle": {Entries: []Entry{
				{Waypoint: "nishi", Side: "A", Wait: 5},
				{Waypoint: "higashi", Side: "A", Leave: "event"},
			}},
		},
		Vehicles: []Vehicle{
			{
				ID: demoHead, Name: "kuha-1",
				MaxSpeed: 4, Acceleration: 1,
				Start: Start{Anchor: 0, Side: "A"}, Heading: [3]float64{0, 0, 1},
				Table: "shuttle",
			},
			{
				ID: demoTail, Name: "kuha-2",
				Leader: uuid.NullUUID{UUID: demoHead, Valid: true}, FollowDistance: 2,
			},
			{
				ID: demoRandom, Name: "yo-1",
				MaxSpeed: 2, Acceleration: 0.5,
				Start: Start{Anchor: 2, Side: "A"}, Heading: [3]float64{0, 0, -1},
			},
		},
	}
}
