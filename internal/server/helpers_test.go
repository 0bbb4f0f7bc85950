package server

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ArenaDuel/internal/protocol"
)

type fakeTransport struct {
	mu         sync.Mutex
	msgs       []protocol.Message
	closed     bool
	alive      bool
	probes     int
	terminated bool
}

func newFakeTransport() *fakeTransport { return &fakeTransport{alive: true} }

func (c *fakeTransport) Send(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.msgs = append(c.msgs, msg)
}

func (c *fakeTransport) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeTransport) TakeAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.alive
	c.alive = false
	return was
}

func (c *fakeTransport) Probe() {
	c.mu.Lock()
	c.probes++
	c.mu.Unlock()
}

func (c *fakeTransport) Terminate() {
	c.mu.Lock()
	c.terminated = true
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeTransport) pong() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

func (c *fakeTransport) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeTransport) isTerminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

func (c *fakeTransport) all() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.msgs...)
}

func (c *fakeTransport) reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

func (c *fakeTransport) count(kind protocol.Kind) int {
	n := 0
	for _, m := range c.all() {
		if m.Kind() == kind {
			n++
		}
	}
	return n
}

func lastOf[T protocol.Message](t *testing.T, c *fakeTransport) T {
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

type published struct {
	subject string
	ev      RoomEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(subject string, ev RoomEvent) {
	p.mu.Lock()
	p.events = append(p.events, published{subject, ev})
	p.mu.Unlock()
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
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

// newTestHub returns a hub whose rooms never tick on their own. Tests
// drive it through handle directly instead of Run.
func newTestHub(t *testing.T) (*Hub, *recordingPublisher, *testClock) {
	t.Helper()
	clock := newTestClock()
	pub := &recordingPublisher{}
	h := NewHub(HubConfig{
		TickRate:   60,
		Clock:      clock.Now,
		Logger:     quietLogger(),
		Publisher:  pub,
		ManualTick: true,
	})
	t.Cleanup(func() {
		for _, r := range h.rooms {
			r.Close()
		}
	})
	return h, pub, clock
}

func (h *Hub) connectFake(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	c := newFakeTransport()
	id := h.nextSession.Add(1)
	h.handle(connectEvent{id: id, conn: c})
	s := h.sessions[id]
	require.NotNil(t, s)
	return s, c
}

func (h *Hub) send(s *Session, msg protocol.Inbound) {
	h.handle(messageEvent{id: s.ID, msg: msg})
}
