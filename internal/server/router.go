package server

import (
	"errors"
	"slices"
	"time"

	"ArenaDuel/internal/game"
	"ArenaDuel/internal/protocol"
)

// route runs one inbound message for s on the hub goroutine.
func (h *Hub) route(s *Session, msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.CreateRoom:
		h.createRoom(s)
	case *protocol.JoinRoom:
		h.joinRoom(s, uint64(m.RoomID))
	case *protocol.SelectFighter:
		h.selectFighter(s, m.Fighter)
	case *protocol.Ready:
		h.ready(s)
	case *protocol.PlayerInput:
		h.playerInput(s, m.Input)
	case *protocol.Ping:
		h.ping(s, m.Timestamp)
	case *protocol.JoinQueue:
		h.joinQueue(s)
	case *protocol.LeaveQueue:
		h.leaveQueue(s)
	case *protocol.LeaveRoom:
		h.leaveRoom(s)
	case *protocol.GetOnlineCount:
		s.send(protocol.OnlineStats{OnlineCount: len(h.sessions), QueueCount: h.queue.len()})
	default:
		h.log.Warn("unhandled message", "session", s.ID, "type", msg.Kind())
		s.send(protocol.ErrorMessage("Unsupported message %q", msg.Kind()))
	}
}

/* ------------------------------- Lobby -------------------------------- */

func (h *Hub) createRoom(s *Session) {
	if s.RoomID != 0 {
		s.fail("Already in a room")
		return
	}
	if h.queue.contains(s.ID) {
		s.fail("Already in game or queue")
		return
	}
	room := h.newRoom()
	if err := room.AddPlayer(s.ID, s.Conn); err != nil {
		delete(h.rooms, room.ID)
		s.fail("Could not create room")
		h.log.Error("create room", "session", s.ID, "err", err)
		return
	}
	s.RoomID = room.ID
	s.send(protocol.RoomCreated{RoomID: room.ID})
	if s.SelectedFighter != "" {
		_ = room.SelectFighter(s.ID, s.SelectedFighter)
	}
	h.pub.Publish(SubjectRoomCreated, RoomEvent{RoomID: room.ID, Players: []uint64{s.ID}, At: h.now()})
	h.log.Info("room created", "room", room.ID, "session", s.ID)
}

func (h *Hub) joinRoom(s *Session, roomID uint64) {
	if s.RoomID != 0 {
		s.fail("Already in a room")
		return
	}
	if h.queue.contains(s.ID) {
		s.fail("Already in game or queue")
		return
	}
	room, ok := h.rooms[roomID]
	if !ok {
		s.fail("Room not found")
		return
	}
	switch err := room.AddPlayer(s.ID, s.Conn); {
	case errors.Is(err, game.ErrRoomFull):
		s.fail("Room is full")
		return
	case err != nil:
		s.fail("Room not found")
		return
	}
	s.RoomID = room.ID
	count := room.PlayerCount()
	s.send(protocol.RoomJoined{RoomID: room.ID, PlayersCount: count})
	room.Broadcast(protocol.PlayerJoined{PlayerID: s.ID, PlayersCount: count}, s.ID)
	if s.SelectedFighter != "" {
		_ = room.SelectFighter(s.ID, s.SelectedFighter)
	}
}

func (h *Hub) selectFighter(s *Session, fighter string) {
	s.SelectedFighter = fighter
	if room := h.roomOf(s); room != nil {
		_ = room.SelectFighter(s.ID, fighter)
	}
}

func (h *Hub) ready(s *Session) {
	room := h.roomOf(s)
	if room == nil {
		s.fail("Not in a room")
		return
	}
	started, err := room.MarkReady(s.ID)
	if err != nil {
		s.fail("Not in a room")
		return
	}
	if started {
		h.pub.Publish(SubjectMatchStart, h.roomEvent(room.ID, ""))
	}
}

func (h *Hub) playerInput(s *Session, in protocol.Input) {
	room := h.roomOf(s)
	if room == nil {
		return
	}
	if err := room.ApplyInput(s.ID, in); err != nil {
		h.log.Debug("input rejected", "session", s.ID, "err", err)
	}
}

func (h *Hub) ping(s *Session, ts float64) {
	now := h.now().UnixMilli()
	// a missing timestamp decodes as zero and says nothing about latency
	if room := h.roomOf(s); room != nil && ts > 0 {
		room.RecordLatency(float64(now) - ts)
	}
	s.send(protocol.Pong{Timestamp: ts, ServerTime: now})
}

func (h *Hub) leaveRoom(s *Session) {
	h.departRoom(s, "left")
	s.SelectedFighter = ""
	s.send(protocol.RoomLeft{})
}

/* ---------------------------- Matchmaking ----------------------------- */

func (h *Hub) joinQueue(s *Session) {
	if s.RoomID != 0 || h.queue.contains(s.ID) {
		s.fail("Already in game or queue")
		return
	}
	s.QueuedAt = h.now()
	pos := h.queue.push(s.ID)
	s.send(protocol.QueueJoined{Position: pos})
	h.log.Info("queued", "session", s.ID, "position", pos)
	h.tryMatch()
}

func (h *Hub) leaveQueue(s *Session) {
	if !h.queue.remove(s.ID) {
		return
	}
	s.QueuedAt = time.Time{}
	s.send(protocol.QueueLeft{})
}

// tryMatch pairs the two oldest queued sessions until fewer than two
// remain. A pair with a dead connection puts the survivor back at the
// head and stops until the next enqueue.
func (h *Hub) tryMatch() {
	for {
		a, b, ok := h.queue.popPair()
		if !ok {
			return
		}
		sa, sb := h.live(a), h.live(b)
		if sa == nil || sb == nil {
			if sb != nil {
				h.queue.pushFront(sb.ID)
			}
			if sa != nil {
				h.queue.pushFront(sa.ID)
			}
			return
		}
		h.startMatch(sa, sb)
	}
}

func (h *Hub) live(id uint64) *Session {
	s, ok := h.sessions[id]
	if !ok || !s.Conn.Open() {
		return nil
	}
	return s
}

func (h *Hub) startMatch(a, b *Session) {
	room := h.newRoom()
	pair := []*Session{a, b}
	for slot, s := range pair {
		s.QueuedAt = time.Time{}
		if err := room.AddPlayer(s.ID, s.Conn); err != nil {
			h.log.Error("seat matched player", "room", room.ID, "session", s.ID, "err", err)
			continue
		}
		s.RoomID = room.ID
		fighter := s.SelectedFighter
		if fighter == "" {
			fighter = game.DefaultFighter(slot)
		}
		_ = room.Prepare(s.ID, fighter)
	}
	started := room.Start()
	a.send(protocol.MatchFound{RoomID: room.ID, Opponent: b.ID})
	b.send(protocol.MatchFound{RoomID: room.ID, Opponent: a.ID})
	h.pub.Publish(SubjectQueueMatch, h.roomEvent(room.ID, ""))
	if started {
		h.pub.Publish(SubjectMatchStart, h.roomEvent(room.ID, "matchmaking"))
	}
	h.log.Info("match found", "room", room.ID, "a", a.ID, "b", b.ID)
}

func (h *Hub) roomEvent(roomID uint64, reason string) RoomEvent {
	ev := RoomEvent{RoomID: roomID, Reason: reason, At: h.now()}
	for _, s := range h.sessions {
		if s.RoomID == roomID {
			ev.Players = append(ev.Players, s.ID)
		}
	}
	slices.Sort(ev.Players)
	return ev
}
