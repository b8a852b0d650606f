// Package kujo serves simulation snapshots over server-sent events and takes commands over HTTP.
package kujo

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"nyiyui.ca/hato/daisha/sim"
)

const streamSnapshot = "snapshot"

type Server struct {
	sim  *sim.Simulator
	s    *sse.Server
	ch   chan sim.Snapshot
	done chan struct{}
}

func NewServer(si *sim.Simulator) *Server {
	s := &Server{
		sim:  si,
		s:    sse.New(),
		ch:   make(chan sim.Snapshot, 1),
		done: make(chan struct{}),
	}
	// snapshots supersede each other
	s.s.AutoReplay = false
	s.s.CreateStream(streamSnapshot)
	si.Snapshots.Subscribe("kujo", s.ch)
	go s.forward()
	return s
}

func (s *Server) forward() {
	defer close(s.done)
	for snap := range s.ch {
		data, err := json.Marshal(snap)
		if err != nil {
			zap.S().Errorf("kujo: marshal json: %s", err)
			continue
		}
		s.s.TryPublish(streamSnapshot, &sse.Event{
			Data: data,
		})
	}
}

// Close stops forwarding snapshots and disconnects every client.
func (s *Server) Close() {
	s.sim.Snapshots.Unsubscribe(s.ch)
	close(s.ch)
	<-s.done
	s.s.RemoveStream(streamSnapshot)
	s.s.Close()
}

// Handler serves:
//
//	GET  /events?stream=snapshot        snapshot stream
//	GET  /snapshot                      latest snapshot
//	POST /waypoints/<name>/go           release vehicles waiting at a waypoint
//	POST /vehicles/<uuid>/uncouple      detach a vehicle from its leader
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events", s.s)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/waypoints/", s.handleWaypoint)
	mux.HandleFunc("/vehicles/", s.handleVehicle)
	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.sim.Snapshots.Current()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		zap.S().Errorf("kujo: write snapshot: %s", err)
	}
}

// action splits /<prefix>/<name>/<verb>.
func action(path, prefix string) (name, verb string, ok bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	name, verb, ok = strings.Cut(strings.TrimPrefix(path, prefix), "/")
	if !ok || name == "" || strings.Contains(verb, "/") {
		return "", "", false
	}
	return name, verb, true
}

func (s *Server) handleWaypoint(w http.ResponseWriter, r *http.Request) {
	name, verb, ok := action(r.URL.Path, "/waypoints/")
	if !ok || verb != "go" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.respond(w, s.sim.Go(name))
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	raw, verb, ok := action(r.URL.Path, "/vehicles/")
	if !ok || verb != "uncouple" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "bad vehicle id", http.StatusBadRequest)
		return
	}
	s.respond(w, s.sim.Uncouple(id))
}

func (s *Server) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, sim.ErrUnknown):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, sim.ErrBusy):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
