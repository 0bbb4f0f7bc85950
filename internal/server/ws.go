package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ArenaDuel/internal/protocol"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
	maxFrameSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	EnableCompression: true,
	CheckOrigin:       func(r *http.Request) bool { return true },
}

type outFrame struct {
	kind int
	data []byte
}

// liveConn adapts one websocket to the hub's Transport. Writes go
// through a buffered channel drained by writePump; a full buffer drops
// the frame.
type liveConn struct {
	conn   *websocket.Conn
	send   chan outFrame
	binary bool
	log    *slog.Logger

	alive     atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newLiveConn(conn *websocket.Conn, binary bool, log *slog.Logger) *liveConn {
	lc := &liveConn{
		conn:   conn,
		send:   make(chan outFrame, sendBuffer),
		binary: binary,
		log:    log,
		done:   make(chan struct{}),
	}
	lc.alive.Store(true)
	conn.SetPongHandler(func(string) error {
		lc.alive.Store(true)
		return nil
	})
	return lc
}

func (lc *liveConn) Open() bool { return !lc.closed.Load() }

func (lc *liveConn) Send(msg protocol.Message) {
	if !lc.Open() {
		return
	}
	frame, err := lc.encode(msg)
	if err != nil {
		lc.log.Error("encode outbound", "type", msg.Kind(), "err", err)
		return
	}
	select {
	case lc.send <- frame:
	case <-lc.done:
	default:
		lc.log.Debug("send buffer full, dropping", "type", msg.Kind())
	}
}

func (lc *liveConn) encode(msg protocol.Message) (outFrame, error) {
	if u, ok := msg.(protocol.GameUpdate); ok && lc.binary {
		return outFrame{kind: websocket.BinaryMessage, data: protocol.EncodeGameUpdate(u)}, nil
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return outFrame{}, err
	}
	return outFrame{kind: websocket.TextMessage, data: data}, nil
}

func (lc *liveConn) TakeAlive() bool { return lc.alive.Swap(false) }

func (lc *liveConn) Probe() {
	if !lc.Open() {
		return
	}
	deadline := time.Now().Add(writeTimeout)
	if err := lc.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		lc.log.Debug("ping failed", "err", err)
	}
}

// Terminate closes the socket. The read loop then fails and reports the
// disconnect to the hub.
func (lc *liveConn) Terminate() {
	lc.closeOnce.Do(func() {
		lc.closed.Store(true)
		close(lc.done)
		_ = lc.conn.Close()
	})
}

func (lc *liveConn) writePump() {
	for {
		select {
		case <-lc.done:
			return
		case f := <-lc.send:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := lc.conn.WriteMessage(f.kind, f.data); err != nil {
				lc.log.Debug("write failed", "err", err)
				lc.Terminate()
				return
			}
		}
	}
}

func serveWS(h *Hub, log *slog.Logger, w http.ResponseWriter, r *http.Request) {
	binary := r.URL.Query().Get("encoding") == "binary"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade", "err", err)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	lc := newLiveConn(conn, binary, log)
	id := h.Connect(lc)
	log = log.With("session", id)
	go lc.writePump()

	defer func() {
		lc.Terminate()
		h.Disconnect(id)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) && lc.Open() {
				log.Debug("read", "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			log.Warn("unsupported frame", "messageType", msgType)
			continue
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn("dropping frame", "err", err)
			continue
		}
		h.Dispatch(id, msg)
	}
}
