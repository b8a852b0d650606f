// Package route holds routes: ordered curve sections with a traversal direction each.
package route

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/daisha/curve"
)

// Side is one of the two travel directions through a rail node.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func (s Side) Opposite() Side {
	return 1 - s
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "A", "a":
		return SideA, nil
	case "B", "b":
		return SideB, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// NodeRef identifies a directional sub-node.
type NodeRef struct {
	Node int
	Side Side
}

func (n NodeRef) String() string {
	return fmt.Sprintf("%d%s", n.Node, n.Side)
}

// Section is one curve of a route, starting at Node.
// The last section of a routed path has no curve and only records the destination.
type Section struct {
	Node int
	Side Side
	// CurveI is the curve's index in the point graph, or -1 for the terminal section.
	CurveI int
	Curve  *curve.Curve
	// Reverse is set if the curve is traversed end → start.
	Reverse bool
	// Leaving is the direction of travel when leaving Node; Entering the direction at the far end.
	Leaving  mgl64.Vec3
	Entering mgl64.Vec3
}

func (s Section) Length() float64 {
	if s.Curve == nil {
		return 0
	}
	return s.Curve.Length()
}

func (s Section) Ref() NodeRef {
	return NodeRef{Node: s.Node, Side: s.Side}
}

type State int

const (
	StateNone State = iota
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Route struct {
	Sections []Section
	State    State
}

// HasRoute reports whether there is a curve left to travel on.
func (r *Route) HasRoute() bool {
	return len(r.Sections) > 0 && r.Sections[0].Curve != nil
}

// Length sums the lengths of all sections.
func (r *Route) Length() float64 {
	var sum float64
	for _, s := range r.Sections {
		sum += s.Length()
	}
	return sum
}

// DistanceToEnd returns the distance left after travelling d along the first section:
// (len(first) - d) plus the lengths of the rest. It is +Inf without a route.
func (r *Route) DistanceToEnd(d float64) float64 {
	if !r.HasRoute() {
		return math.Inf(1)
	}
	sum := r.Sections[0].Length() - d
	for _, s := range r.Sections[1:] {
		// terminal section has length 0
		sum += s.Length()
	}
	return sum
}

// SectionAtDistance finds the section lying d behind the end of the front section.
// local is the distance from the section's own start in its traversal direction.
// Past the last curved section, it clamps to that section's start.
func (r *Route) SectionAtDistance(d float64) (s Section, i int, local float64, ok bool) {
	last := -1
	remainder := d
	for i, s := range r.Sections {
		if s.Curve == nil {
			continue
		}
		last = i
		l := s.Length()
		if remainder <= l {
			if remainder < 0 {
				remainder = 0
			}
			return s, i, l - remainder, true
		}
		remainder -= l
	}
	if last == -1 {
		return Section{}, -1, 0, false
	}
	return r.Sections[last], last, 0, true
}

func (r *Route) Front() (Section, bool) {
	if len(r.Sections) == 0 {
		return Section{}, false
	}
	return r.Sections[0], true
}

// PopFront removes and returns the first section. It panics on an empty route.
func (r *Route) PopFront() Section {
	if len(r.Sections) == 0 {
		panic("PopFront on empty route")
	}
	s := r.Sections[0]
	r.Sections = slices.Delete(r.Sections, 0, 1)
	return s
}

func (r *Route) PushFront(s Section) {
	r.Sections = slices.Insert(r.Sections, 0, s)
}

// TrimAfter drops every section after index i.
func (r *Route) TrimAfter(i int) {
	if i+1 < len(r.Sections) {
		r.Sections = r.Sections[:i+1]
	}
}

// Reset empties r, keeping its allocation.
func (r *Route) Reset() {
	r.Sections = r.Sections[:0]
	r.State = StateNone
}

// Clone returns a deep copy of r's section list.
func (r *Route) Clone() Route {
	return Route{Sections: slices.Clone(r.Sections), State: r.State}
}
