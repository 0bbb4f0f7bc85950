package game

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ArenaDuel/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   []protocol.Message
	closed bool
}

func (c *fakeConn) Send(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.msgs = append(c.msgs, msg)
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) all() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.msgs...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

func (c *fakeConn) count(kind protocol.Kind) int {
	n := 0
	for _, m := range c.all() {
		if m.Kind() == kind {
			n++
		}
	}
	return n
}

// lastOf returns the most recent message of type T.
func lastOf[T protocol.Message](t *testing.T, c *fakeConn) T {
	t.Helper()
	msgs := c.all()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m, ok := msgs[i].(T); ok {
			return m
		}
	}
	var zero T
	t.Fatalf("no %T received; got %d messages", zero, len(msgs))
	return zero
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManualRoom(t *testing.T, clock *testClock) *Room {
	t.Helper()
	return NewRoom(1, RoomConfig{
		TickRate:   DevTickRate,
		Clock:      clock.Now,
		Logger:     quietLogger(),
		ManualTick: true,
	})
}

// startedRoom returns a running manual room with player 1 as dowand and
// player 2 as ewon. Both connections have their history cleared.
func startedRoom(t *testing.T) (*Room, *fakeConn, *fakeConn, *testClock) {
	t.Helper()
	clock := newTestClock()
	r := newManualRoom(t, clock)
	a, b := &fakeConn{}, &fakeConn{}
	require.NoError(t, r.AddPlayer(1, a))
	require.NoError(t, r.AddPlayer(2, b))
	require.NoError(t, r.SelectFighter(1, FighterDowand))
	require.NoError(t, r.SelectFighter(2, FighterEwon))
	_, err := r.MarkReady(1)
	require.NoError(t, err)
	started, err := r.MarkReady(2)
	require.NoError(t, err)
	require.True(t, started)
	a.reset()
	b.reset()
	return r, a, b, clock
}

func (r *Room) player(t *testing.T, id uint64) *PlayerState {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.playerLocked(id)
	require.NotNil(t, p, "player %d", id)
	return p
}

func moveTo(t *testing.T, r *Room, id uint64, x, y float64, facing bool) {
	t.Helper()
	require.NoError(t, r.ApplyInput(id, protocol.Input{
		Movement: &protocol.Movement{X: x, Y: y, Facing: facing},
	}))
}
