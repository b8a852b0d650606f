package bogie

import (
	"fmt"

	"golang.org/x/exp/slices"
)

func (b *Bogie) Leader() *Bogie { return b.leader }

func (b *Bogie) Followers() []*Bogie { return b.followers }

func (b *Bogie) FollowDistance() float64 { return b.followDistance }

// Head returns the first vehicle of b's convoy.
func (b *Bogie) Head() *Bogie {
	cur := b
	for cur.leader != nil {
		cur = cur.leader
	}
	return cur
}

// SetLeader makes b follow l at distance behind it, leaving b's previous leader first.
// It panics if l is b or already follows b.
func (b *Bogie) SetLeader(l *Bogie, distance float64) {
	for cur := l; cur != nil; cur = cur.leader {
		if cur == b {
			panic(fmt.Sprintf("%s: following %s would make a cycle", b, l))
		}
	}
	b.ClearLeader()
	if head := l.Head(); len(head.followers) == 0 {
		// the head hasn't been recording; start again from its current section
		head.shared.Reset()
	}
	b.leader = l
	b.followDistance = distance
	b.state = StateFollowing
	l.followers = append(l.followers, b)
}

// ClearLeader uncouples b from its leader.
// b keeps going along the path its convoy was taking and becomes the head of its own followers.
func (b *Bogie) ClearLeader() {
	if b.leader == nil {
		return
	}
	head := b.Head()
	_, i, _, ok := head.shared.SectionAtDistance(b.trailingFrom(head))
	if !ok || !b.placed {
		i = -1
	}
	b.route.Reset()
	b.shared.Reset()
	// sections ahead of b, its own first
	for j := i; j >= 0; j-- {
		b.route.Sections = append(b.route.Sections, head.shared.Sections[j])
	}
	if i != -1 {
		b.route.Sections = append(b.route.Sections, head.route.Sections[1:]...)
		b.route.State = head.route.State
		b.travelled = b.local
		b.start = b.section.Ref()
		b.shared.Sections = slices.Clone(head.shared.Sections[i:])
	}

	l := b.leader
	if k := slices.Index(l.followers, b); k != -1 {
		l.followers = slices.Delete(l.followers, k, k+1)
	}
	if len(head.followers) == 0 {
		head.shared.Reset()
	}
	if len(b.followers) == 0 {
		b.shared.Reset()
	}
	b.leader = nil
	b.followDistance = 0
	b.leg = Leg{}
	if b.route.HasRoute() {
		b.state = StateRunning
	} else {
		b.route.Reset()
		b.state = StateWaitingRoute
	}
}

// trailingFrom is how far b is behind the end of head's current section.
func (b *Bogie) trailingFrom(head *Bogie) float64 {
	var d float64
	for cur := b; cur != head && cur.leader != nil; cur = cur.leader {
		d += cur.followDistance
	}
	if front, ok := head.route.Front(); ok {
		d += front.Length() - head.travelled
	}
	return d
}

func (b *Bogie) tickFollower() {
	head := b.Head()
	b.Speed = head.Speed
	b.state = StateFollowing
	s, i, local, ok := head.shared.SectionAtDistance(b.trailingFrom(head))
	if !ok {
		return
	}
	b.section, b.local, b.placed = s, local, true
	if len(b.followers) == 0 {
		head.shared.TrimAfter(i)
	}
}
