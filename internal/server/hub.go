package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ArenaDuel/internal/game"
	"ArenaDuel/internal/protocol"
)

// Transport is a client connection as the hub sees it.
type Transport interface {
	game.Conn
	// TakeAlive reports whether the peer answered since the last call
	// and clears the flag.
	TakeAlive() bool
	Probe()
	Terminate()
}

// Session is one connected client. It outlives any room it plays in.
type Session struct {
	ID              uint64
	Conn            Transport
	RoomID          uint64
	SelectedFighter string
	QueuedAt        time.Time
}

func (s *Session) send(msg protocol.Message) {
	if s.Conn.Open() {
		s.Conn.Send(msg)
	}
}

func (s *Session) fail(msg string) {
	s.send(protocol.Error{Message: msg})
}

type Stats struct {
	Online int              `json:"online"`
	Queue  int              `json:"queue"`
	Rooms  []game.RoomStats `json:"rooms"`
}

type HubConfig struct {
	TickRate   int
	Clock      func() time.Time
	Logger     *slog.Logger
	Publisher  Publisher
	ManualTick bool
}

/* ------------------------------ Events ------------------------------ */

type connectEvent struct {
	id   uint64
	conn Transport
}

type messageEvent struct {
	id  uint64
	msg protocol.Inbound
}

type disconnectEvent struct{ id uint64 }

type sweepEvent struct{}

type statsEvent struct{ reply chan Stats }

/* -------------------------------- Hub -------------------------------- */

// Hub owns the session, room and queue tables. Only the goroutine
// running Run touches them; everything else posts events.
type Hub struct {
	cfg    HubConfig
	log    *slog.Logger
	pub    Publisher
	now    func() time.Time
	events chan any
	done   chan struct{}
	stop   sync.Once

	nextSession atomic.Uint64
	nextRoom    atomic.Uint64

	sessions map[uint64]*Session
	rooms    map[uint64]*game.Room
	queue    matchQueue
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.TickRate <= 0 {
		cfg.TickRate = game.DevTickRate
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nopPublisher{}
	}
	return &Hub{
		cfg:      cfg,
		log:      cfg.Logger.With("component", "hub"),
		pub:      cfg.Publisher,
		now:      cfg.Clock,
		events:   make(chan any, 1024),
		done:     make(chan struct{}),
		sessions: map[uint64]*Session{},
		rooms:    map[uint64]*game.Room{},
	}
}

// Run processes events until ctx is cancelled, then closes every room
// and connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

func (h *Hub) shutdown() {
	h.stop.Do(func() { close(h.done) })
	for id, room := range h.rooms {
		room.Close()
		delete(h.rooms, id)
	}
	for id, s := range h.sessions {
		s.Conn.Terminate()
		delete(h.sessions, id)
	}
	h.queue = matchQueue{}
	h.log.Info("hub stopped")
}

func (h *Hub) post(ev any) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// Connect registers conn and returns its session id. The connected
// greeting is sent from the router so it precedes any reply.
func (h *Hub) Connect(conn Transport) uint64 {
	id := h.nextSession.Add(1)
	h.post(connectEvent{id: id, conn: conn})
	return id
}

func (h *Hub) Dispatch(id uint64, msg protocol.Inbound) {
	h.post(messageEvent{id: id, msg: msg})
}

func (h *Hub) Disconnect(id uint64) {
	h.post(disconnectEvent{id: id})
}

// SweepKeepAlive terminates connections that missed the previous probe
// and probes the rest.
func (h *Hub) SweepKeepAlive() {
	h.post(sweepEvent{})
}

// Stats snapshots the global tables.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.events <- statsEvent{reply: reply}:
	case <-h.done:
		return Stats{}, context.Canceled
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Stats{}, context.Canceled
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) handle(ev any) {
	switch ev := ev.(type) {
	case connectEvent:
		h.register(ev.id, ev.conn)
	case messageEvent:
		s, ok := h.sessions[ev.id]
		if !ok {
			return
		}
		h.route(s, ev.msg)
	case disconnectEvent:
		h.unregister(ev.id)
	case sweepEvent:
		h.sweep()
	case statsEvent:
		ev.reply <- h.stats()
	default:
		h.log.Error("unknown hub event", "event", ev)
	}
}

func (h *Hub) register(id uint64, conn Transport) {
	s := &Session{ID: id, Conn: conn}
	h.sessions[id] = s
	h.log.Info("player connected", "session", id, "online", len(h.sessions))
	s.send(protocol.Connected{PlayerID: id})
}

func (h *Hub) unregister(id uint64) {
	s, ok := h.sessions[id]
	if !ok {
		return
	}
	if h.queue.remove(id) {
		h.log.Info("removed from queue", "session", id)
	}
	h.departRoom(s, "disconnect")
	delete(h.sessions, id)
	h.log.Info("player disconnected", "session", id, "online", len(h.sessions))
}

func (h *Hub) sweep() {
	for _, s := range h.sessions {
		if !s.Conn.TakeAlive() {
			h.log.Info("keep-alive timeout", "session", s.ID)
			s.Conn.Terminate()
			continue
		}
		s.Conn.Probe()
	}
}

func (h *Hub) stats() Stats {
	st := Stats{
		Online: len(h.sessions),
		Queue:  h.queue.len(),
		Rooms:  make([]game.RoomStats, 0, len(h.rooms)),
	}
	for _, r := range h.rooms {
		st.Rooms = append(st.Rooms, r.Stats())
	}
	return st
}

/* ------------------------------- Rooms ------------------------------- */

func (h *Hub) newRoom() *game.Room {
	id := h.nextRoom.Add(1)
	room := game.NewRoom(id, game.RoomConfig{
		TickRate:   h.cfg.TickRate,
		Clock:      h.cfg.Clock,
		Logger:     h.cfg.Logger,
		ManualTick: h.cfg.ManualTick,
	})
	h.rooms[id] = room
	return room
}

func (h *Hub) roomOf(s *Session) *game.Room {
	if s.RoomID == 0 {
		return nil
	}
	return h.rooms[s.RoomID]
}

// departRoom takes s out of its room, tells the peer and drops the room
// once it is empty.
func (h *Hub) departRoom(s *Session, reason string) {
	room := h.roomOf(s)
	s.RoomID = 0
	if room == nil {
		return
	}
	remaining := room.RemovePlayer(s.ID)
	room.Broadcast(protocol.PlayerDisconnected{PlayerID: s.ID}, 0)
	if remaining == 0 {
		delete(h.rooms, room.ID)
		h.pub.Publish(SubjectRoomClosed, RoomEvent{RoomID: room.ID, Reason: reason, At: h.now()})
		h.log.Info("room deleted", "room", room.ID)
	}
}
