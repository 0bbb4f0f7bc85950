package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArenaDuel/internal/game"
	"ArenaDuel/internal/protocol"
)

func TestConnectGreetsWithIncreasingIDs(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	b, cb := h.connectFake(t)

	assert.Less(t, a.ID, b.ID)
	assert.Equal(t, a.ID, lastOf[protocol.Connected](t, ca).PlayerID)
	assert.Equal(t, b.ID, lastOf[protocol.Connected](t, cb).PlayerID)
	assert.Len(t, h.sessions, 2)
}

func TestCreateJoinReadyStartsMatch(t *testing.T) {
	h, pub, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	b, cb := h.connectFake(t)

	h.send(a, &protocol.CreateRoom{})
	created := lastOf[protocol.RoomCreated](t, ca)
	require.NotZero(t, created.RoomID)
	assert.Equal(t, created.RoomID, a.RoomID)

	h.send(b, &protocol.JoinRoom{RoomID: protocol.Handle(created.RoomID)})
	joined := lastOf[protocol.RoomJoined](t, cb)
	assert.Equal(t, protocol.RoomJoined{RoomID: created.RoomID, PlayersCount: 2}, joined)
	assert.Equal(t, protocol.PlayerJoined{PlayerID: b.ID, PlayersCount: 2}, lastOf[protocol.PlayerJoined](t, ca))
	assert.Zero(t, cb.count(protocol.KindPlayerJoined), "joiner is not told about itself")

	h.send(a, &protocol.SelectFighter{Fighter: game.FighterEwon})
	h.send(b, &protocol.SelectFighter{Fighter: game.FighterDowand})
	assert.Equal(t, 2, cb.count(protocol.KindFighterSelected))

	h.send(a, &protocol.Ready{})
	assert.Equal(t, 1, cb.count(protocol.KindPlayerReady))
	assert.Zero(t, ca.count(protocol.KindGameStart))

	h.send(b, &protocol.Ready{})
	start := lastOf[protocol.GameStart](t, ca)
	require.Len(t, start.Players, 2)
	byID := map[uint64]protocol.SpawnFrame{}
	for _, p := range start.Players {
		byID[p.ID] = p
	}
	// dowand always spawns left, ewon right, regardless of join order
	assert.InDelta(t, 125, byID[b.ID].X, 1e-9)
	assert.InDelta(t, 445, byID[a.ID].X, 1e-9)
	assert.InDelta(t, 240, byID[a.ID].Y, 1e-9)
	assert.Equal(t, 1, cb.count(protocol.KindGameStart))
	assert.Equal(t, game.Running, h.rooms[created.RoomID].State())

	assert.Equal(t, []string{SubjectRoomCreated, SubjectMatchStart}, pub.subjects())
	assert.ElementsMatch(t, []uint64{a.ID, b.ID}, pub.events[1].ev.Players)
}

func TestJoinRoomRejections(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, _ := h.connectFake(t)
	b, _ := h.connectFake(t)
	c, cc := h.connectFake(t)

	h.send(c, &protocol.JoinRoom{RoomID: 99})
	assert.Equal(t, "Room not found", lastOf[protocol.Error](t, cc).Message)
	assert.Zero(t, c.RoomID)

	h.send(a, &protocol.CreateRoom{})
	h.send(b, &protocol.JoinRoom{RoomID: protocol.Handle(a.RoomID)})
	h.send(c, &protocol.JoinRoom{RoomID: protocol.Handle(a.RoomID)})
	assert.Equal(t, "Room is full", lastOf[protocol.Error](t, cc).Message)
	assert.Zero(t, c.RoomID)
	assert.Equal(t, 2, h.rooms[a.RoomID].PlayerCount())
}

func TestCreateRoomWhileBusy(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	b, cb := h.connectFake(t)

	h.send(a, &protocol.CreateRoom{})
	first := a.RoomID
	h.send(a, &protocol.CreateRoom{})
	assert.Equal(t, "Already in a room", lastOf[protocol.Error](t, ca).Message)
	assert.Equal(t, first, a.RoomID)
	assert.Len(t, h.rooms, 1)

	h.send(b, &protocol.JoinQueue{})
	h.send(b, &protocol.CreateRoom{})
	assert.Equal(t, "Already in game or queue", lastOf[protocol.Error](t, cb).Message)
	assert.Len(t, h.rooms, 1)
}

func TestReadyAndInputWithoutRoom(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	ca.reset()

	h.send(a, &protocol.PlayerInput{Input: protocol.Input{Movement: &protocol.Movement{X: 10}}})
	assert.Empty(t, ca.all())

	h.send(a, &protocol.Ready{})
	assert.Equal(t, "Not in a room", lastOf[protocol.Error](t, ca).Message)
}

func TestSelectFighterOutsideRoomIsRemembered(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	b, _ := h.connectFake(t)

	h.send(a, &protocol.SelectFighter{Fighter: game.FighterEwon})
	h.send(b, &protocol.SelectFighter{Fighter: game.FighterDowand})
	assert.Equal(t, game.FighterEwon, a.SelectedFighter)
	assert.Zero(t, ca.count(protocol.KindFighterSelected))

	h.send(a, &protocol.JoinQueue{})
	h.send(b, &protocol.JoinQueue{})
	start := lastOf[protocol.GameStart](t, ca)
	fighters := map[uint64]string{}
	for _, p := range start.Players {
		fighters[p.ID] = p.Fighter
	}
	assert.Equal(t, map[uint64]string{a.ID: game.FighterEwon, b.ID: game.FighterDowand}, fighters)
}

func TestLeaveRoomResetsSession(t *testing.T) {
	h, pub, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	b, cb := h.connectFake(t)

	h.send(a, &protocol.SelectFighter{Fighter: game.FighterDowand})
	h.send(a, &protocol.CreateRoom{})
	roomID := a.RoomID
	h.send(b, &protocol.JoinRoom{RoomID: protocol.Handle(roomID)})

	h.send(a, &protocol.LeaveRoom{})
	assert.Equal(t, 1, ca.count(protocol.KindRoomLeft))
	assert.Zero(t, a.RoomID)
	assert.Empty(t, a.SelectedFighter)
	assert.Equal(t, protocol.PlayerDisconnected{PlayerID: a.ID}, lastOf[protocol.PlayerDisconnected](t, cb))
	require.Contains(t, h.rooms, roomID)
	assert.False(t, h.rooms[roomID].Has(a.ID))

	h.send(b, &protocol.LeaveRoom{})
	assert.NotContains(t, h.rooms, roomID)
	assert.Equal(t, SubjectRoomClosed, pub.subjects()[len(pub.subjects())-1])

	// leaving again is harmless and still acknowledged
	h.send(b, &protocol.LeaveRoom{})
	assert.Equal(t, 2, cb.count(protocol.KindRoomLeft))
}

func TestDisconnectCleansUp(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, _ := h.connectFake(t)
	b, _ := h.connectFake(t)

	h.send(a, &protocol.CreateRoom{})
	roomID := a.RoomID
	room := h.rooms[roomID]
	h.send(b, &protocol.JoinQueue{})

	h.handle(disconnectEvent{id: a.ID})
	assert.NotContains(t, h.rooms, roomID)
	assert.Equal(t, game.Terminated, room.State())

	h.handle(disconnectEvent{id: b.ID})
	assert.Zero(t, h.queue.len())
	assert.Empty(t, h.sessions)

	// unknown ids are ignored
	h.handle(disconnectEvent{id: 42})
	h.handle(messageEvent{id: 42, msg: &protocol.CreateRoom{}})
	assert.Empty(t, h.rooms)
}

func TestDisconnectMidMatchNotifiesPeer(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, _ := h.connectFake(t)
	b, cb := h.connectFake(t)
	h.send(a, &protocol.JoinQueue{})
	h.send(b, &protocol.JoinQueue{})
	room := h.rooms[a.RoomID]
	require.Equal(t, game.Running, room.State())

	h.handle(disconnectEvent{id: a.ID})
	assert.Equal(t, protocol.PlayerDisconnected{PlayerID: a.ID}, lastOf[protocol.PlayerDisconnected](t, cb))
	assert.Equal(t, game.Forming, room.State())
	assert.Equal(t, 1, room.PlayerCount())
	assert.Equal(t, room.ID, b.RoomID)
}

func TestPingEchoesAndFeedsRoomRate(t *testing.T) {
	h, _, clock := newTestHub(t)
	a, ca := h.connectFake(t)
	b, _ := h.connectFake(t)

	now := float64(clock.Now().UnixMilli())
	h.send(a, &protocol.Ping{Timestamp: now - 40})
	pong := lastOf[protocol.Pong](t, ca)
	assert.Equal(t, now-40, pong.Timestamp)
	assert.Equal(t, clock.Now().UnixMilli(), pong.ServerTime)

	h.send(a, &protocol.JoinQueue{})
	h.send(b, &protocol.JoinQueue{})
	room := h.rooms[a.RoomID]
	for range 4 {
		h.send(a, &protocol.Ping{Timestamp: float64(clock.Now().UnixMilli()) - 260})
	}
	clock.Advance(11 * time.Second)
	room.Step()
	assert.Equal(t, 55, room.Stats().TickRate)
}

func TestPingWithoutTimestampLeavesRateAlone(t *testing.T) {
	h, _, clock := newTestHub(t)
	a, _ := h.connectFake(t)
	b, cb := h.connectFake(t)
	h.send(a, &protocol.JoinQueue{})
	h.send(b, &protocol.JoinQueue{})
	room := h.rooms[a.RoomID]

	for range 9 {
		h.send(a, &protocol.Ping{Timestamp: float64(clock.Now().UnixMilli()) - 20})
	}
	msg, err := protocol.Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	h.send(b, msg)
	assert.Zero(t, lastOf[protocol.Pong](t, cb).Timestamp)

	clock.Advance(11 * time.Second)
	room.Step()
	st := room.Stats()
	assert.Equal(t, 60, st.TickRate)
	assert.InDelta(t, 20.0, st.AvgLatencyMs, 1e-9)
}

func TestCreateRoomAnnouncesRoomBeforeFighter(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	h.send(a, &protocol.SelectFighter{Fighter: game.FighterEwon})
	ca.reset()

	h.send(a, &protocol.CreateRoom{})
	msgs := ca.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.KindRoomCreated, msgs[0].Kind())
	assert.Equal(t, protocol.KindFighterSelected, msgs[1].Kind())
}

func TestOnlineStats(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	h.connectFake(t)
	h.connectFake(t)
	h.send(a, &protocol.JoinQueue{})

	h.send(a, &protocol.GetOnlineCount{})
	assert.Equal(t, protocol.OnlineStats{OnlineCount: 3, QueueCount: 1}, lastOf[protocol.OnlineStats](t, ca))

	st := h.stats()
	assert.Equal(t, 3, st.Online)
	assert.Equal(t, 1, st.Queue)
	assert.Empty(t, st.Rooms)
}

func TestKeepAliveSweep(t *testing.T) {
	h, _, _ := newTestHub(t)
	a, ca := h.connectFake(t)
	_, cb := h.connectFake(t)

	h.handle(sweepEvent{})
	assert.Equal(t, 1, ca.probes)
	assert.Equal(t, 1, cb.probes)

	cb.pong()
	h.handle(sweepEvent{})
	assert.True(t, ca.isTerminated(), "no answer to the previous probe")
	assert.False(t, cb.isTerminated())
	assert.Equal(t, 2, cb.probes)

	// the session stays until the transport reports the disconnect
	assert.Contains(t, h.sessions, a.ID)
}

func TestRunServesStatsAndShutsDown(t *testing.T) {
	h, _, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()

	c := newFakeTransport()
	id := h.Connect(c)
	h.Dispatch(id, &protocol.CreateRoom{})

	require.Eventually(t, func() bool {
		st, err := h.Stats(ctx)
		return err == nil && st.Online == 1 && len(st.Rooms) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.True(t, c.isTerminated())

	_, err := h.Stats(context.Background())
	assert.Error(t, err)
	// posting after shutdown must not block
	h.Disconnect(id)
}
