// Package notify fans values out to subscribers without letting a slow one stall the sender.
package notify

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

type subscriber[E any] struct {
	ch      chan E
	comment string
}

type MultiplexerSender[E any] struct {
	m *Multiplexer[E]
}

// Send delivers e to every subscriber that has room for it.
// Subscribers whose channels are full miss e.
func (ms *MultiplexerSender[E]) Send(e E) {
	ms.m.send(e)
}

func NewMultiplexerSender[E any](comment string) (*MultiplexerSender[E], *Multiplexer[E]) {
	m := &Multiplexer[E]{
		comment: comment,
	}
	return &MultiplexerSender[E]{m: m}, m
}

type Multiplexer[E any] struct {
	comment         string
	subscribersLock sync.Mutex
	subscribers     []subscriber[E]
	current         E
	sent            bool
	dropped         map[string]int
}

func (m *Multiplexer[E]) Subscribe(comment string, c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.subscribers = append(m.subscribers, subscriber[E]{
		ch:      c,
		comment: comment,
	})
}

func (m *Multiplexer[E]) Unsubscribe(c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	i := slices.IndexFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == c })
	if i == -1 {
		panic("already unsubscribed")
	}
	m.subscribers = slices.Delete(m.subscribers, i, i+1)
}

// Current returns the last value sent, if any.
func (m *Multiplexer[E]) Current() (E, bool) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	return m.current, m.sent
}

// Len returns the number of subscribers.
func (m *Multiplexer[E]) Len() int {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	return len(m.subscribers)
}

func (m *Multiplexer[E]) send(e E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.current, m.sent = e, true
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- e:
		default:
			m.drop(sub)
		}
	}
}

// subscribersLock must be taken!
func (m *Multiplexer[E]) drop(sub subscriber[E]) {
	if m.dropped == nil {
		m.dropped = map[string]int{}
	}
	m.dropped[sub.comment]++
	n := m.dropped[sub.comment]
	// only every so often; a stuck subscriber would otherwise log every tick
	if n&(n-1) == 0 {
		zap.S().Warnf("multiplexer %s: subscriber %s is full (%d dropped)", m.comment, sub.comment, n)
	}
}
