// Package sim runs every vehicle of a scene in fixed steps and publishes a snapshot after each.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/bogie"
	"nyiyui.ca/hato/daisha/config"
	"nyiyui.ca/hato/daisha/network"
	"nyiyui.ca/hato/daisha/notify"
	"nyiyui.ca/hato/daisha/points"
	"nyiyui.ca/hato/daisha/route"
	"nyiyui.ca/hato/daisha/router"
)

var (
	ErrConvoyCycle  = errors.New("convoy has a cycle")
	ErrConvoyBranch = errors.New("vehicle has more than one follower")
	ErrUnknown      = errors.New("unknown name or id")
	ErrBusy         = errors.New("command queue full")
)

const commandQueueLen = 64

type command struct {
	waypoint string
	uncouple uuid.UUID
}

type Simulator struct {
	Graph   *points.Graph
	Network *network.Network
	// TopologyErrors are the curves skipped while loading the scene.
	TopologyErrors []error

	router *router.Router
	// vehicles has every convoy's head before the rest of the convoy.
	vehicles []*bogie.Bogie
	byID     map[uuid.UUID]*bogie.Bogie
	step     int64
	elapsed  float64
	commands chan command

	snapshotsS *notify.MultiplexerSender[Snapshot]
	// Snapshots receives a Snapshot after every Step.
	Snapshots *notify.Multiplexer[Snapshot]
}

// New builds the network and vehicles of scene.
// Convoys are checked here once: a leader chain must not loop, and a vehicle leads at most one other.
func New(scene config.Scene) (*Simulator, error) {
	g, errs := points.Load(scene.Topology)
	wps := make([]network.Waypoint, len(scene.Waypoints))
	for i, wp := range scene.Waypoints {
		wps[i] = wp.Waypoint()
	}
	net, err := network.Build(g, wps)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		Graph:          g,
		Network:        net,
		TopologyErrors: errs,
		router:         router.New(net),
		byID:           map[uuid.UUID]*bogie.Bogie{},
		commands:       make(chan command, commandQueueLen),
	}
	s.snapshotsS, s.Snapshots = notify.NewMultiplexerSender[Snapshot]("snapshots")
	seed := scene.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	depths, err := convoyDepths(scene.Vehicles)
	if err != nil {
		return nil, err
	}
	all := make([]*bogie.Bogie, len(scene.Vehicles))
	for i, v := range scene.Vehicles {
		conf := v.Conf()
		if !v.Leader.Valid {
			conf.Start, err = s.start(v.Start)
			if err != nil {
				return nil, fmt.Errorf("vehicle %d (%s): %w", i, v.Name, err)
			}
			if v.Table == "" {
				conf.Dispatcher = bogie.NewRandomDispatcher(rand.New(rand.NewSource(rng.Int63())))
			} else {
				t, ok := scene.Tables[v.Table]
				if !ok {
					return nil, fmt.Errorf("vehicle %d (%s): table %s: %w", i, v.Name, v.Table, ErrUnknown)
				}
				conf.Dispatcher, err = t.RoutingTable()
				if err != nil {
					return nil, fmt.Errorf("vehicle %d (%s): table %s: %w", i, v.Name, v.Table, err)
				}
			}
		}
		b := bogie.New(conf, net, s.router)
		all[i] = b
		s.byID[b.ID] = b
	}
	for i, v := range scene.Vehicles {
		if v.Leader.Valid {
			all[i].SetLeader(s.byID[v.Leader.UUID], v.FollowDistance)
		}
	}
	for depth := 0; len(s.vehicles) < len(all); depth++ {
		for i, b := range all {
			if depths[i] == depth {
				s.vehicles = append(s.vehicles, b)
			}
		}
	}
	zap.S().Infof("scene %s: %d rail nodes, %d vehicles", scene.Name, len(net.Nodes), len(s.vehicles))
	return s, nil
}

// convoyDepths returns how many leaders each vehicle has.
func convoyDepths(vs []config.Vehicle) ([]int, error) {
	index := map[uuid.UUID]int{}
	for i, v := range vs {
		if v.ID != uuid.Nil {
			index[v.ID] = i
		}
	}
	leader := make([]int, len(vs))
	followers := make([]int, len(vs))
	for i, v := range vs {
		leader[i] = -1
		if !v.Leader.Valid {
			continue
		}
		l, ok := index[v.Leader.UUID]
		if !ok {
			return nil, fmt.Errorf("vehicle %d (%s): leader %s: %w", i, v.Name, v.Leader.UUID, ErrUnknown)
		}
		leader[i] = l
		followers[l]++
		if followers[l] > 1 {
			return nil, fmt.Errorf("vehicle %d (%s): %w", l, vs[l].Name, ErrConvoyBranch)
		}
	}
	depths := make([]int, len(vs))
	for i := range vs {
		for cur := leader[i]; cur != -1; cur = leader[cur] {
			depths[i]++
			if depths[i] > len(vs) {
				return nil, fmt.Errorf("vehicle %d (%s): %w", i, vs[i].Name, ErrConvoyCycle)
			}
		}
	}
	return depths, nil
}

func (s *Simulator) start(st config.Start) (route.NodeRef, error) {
	side, err := route.ParseSide(st.Side)
	if err != nil {
		return route.NodeRef{}, err
	}
	node, ok := s.Network.ByAnchor(points.Handle(st.Anchor))
	if !ok {
		return route.NodeRef{}, fmt.Errorf("start anchor %d: %w", st.Anchor, ErrUnknown)
	}
	return route.NodeRef{Node: node, Side: side}, nil
}

// Vehicles returns every vehicle, heads before their followers.
func (s *Simulator) Vehicles() []*bogie.Bogie { return s.vehicles }

func (s *Simulator) Vehicle(id uuid.UUID) (*bogie.Bogie, bool) {
	b, ok := s.byID[id]
	return b, ok
}

// Go releases vehicles waiting at the named waypoint, at the start of the next step.
// It is safe to call while Run is going.
func (s *Simulator) Go(waypoint string) error {
	if _, ok := s.Network.Waypoint(waypoint); !ok {
		return fmt.Errorf("waypoint %s: %w", waypoint, ErrUnknown)
	}
	return s.enqueue(command{waypoint: waypoint})
}

// Uncouple detaches a vehicle from its leader at the start of the next step.
// It is safe to call while Run is going.
func (s *Simulator) Uncouple(id uuid.UUID) error {
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("vehicle %s: %w", id, ErrUnknown)
	}
	return s.enqueue(command{uncouple: id})
}

func (s *Simulator) enqueue(c command) error {
	select {
	case s.commands <- c:
		return nil
	default:
		return ErrBusy
	}
}

func (s *Simulator) apply() {
	for {
		select {
		case c := <-s.commands:
			if c.waypoint != "" {
				wp, _ := s.Network.Waypoint(c.waypoint)
				wp.Go()
				zap.S().Debugf("go %s", c.waypoint)
			}
			if c.uncouple != uuid.Nil {
				b := s.byID[c.uncouple]
				b.ClearLeader()
				zap.S().Infof("%s: uncoupled", b)
			}
		default:
			return
		}
	}
}

// Step applies pending commands, advances every vehicle by dt seconds, and publishes the result.
// Step must not be called concurrently with itself or Run.
func (s *Simulator) Step(dt float64) Snapshot {
	s.apply()
	for _, b := range s.vehicles {
		b.Tick(dt)
	}
	s.step++
	s.elapsed += dt
	snap := s.Snapshot()
	s.snapshotsS.Send(snap)
	return snap
}

// Run steps every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Step(interval.Seconds())
		}
	}
}
