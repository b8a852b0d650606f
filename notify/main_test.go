package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	s, m := NewMultiplexerSender[int]("test")
	_, ok := m.Current()
	assert.False(t, ok)

	a := make(chan int, 2)
	b := make(chan int, 1)
	m.Subscribe("a", a)
	m.Subscribe("b", b)
	s.Send(1)
	s.Send(2)
	assert.Equal(t, 1, <-a)
	assert.Equal(t, 2, <-a)
	assert.Equal(t, 1, <-b)
	select {
	case v := <-b:
		t.Fatalf("b should have missed 2, got %d", v)
	default:
	}
	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, 2, cur)
}

func TestUnsubscribe(t *testing.T) {
	s, m := NewMultiplexerSender[string]("test")
	a := make(chan string, 1)
	b := make(chan string, 1)
	m.Subscribe("a", a)
	m.Subscribe("b", b)
	m.Unsubscribe(a)
	assert.Equal(t, 1, m.Len())
	s.Send("x")
	assert.Equal(t, "x", <-b)
	assert.Len(t, a, 0)
	assert.Panics(t, func() { m.Unsubscribe(a) })
}
