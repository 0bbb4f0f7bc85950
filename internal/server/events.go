package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectRoomCreated = "arena.room.created"
	SubjectMatchStart  = "arena.match.started"
	SubjectRoomClosed  = "arena.room.closed"
	SubjectQueueMatch  = "arena.queue.matched"
)

// RoomEvent is the payload of every lifecycle subject.
type RoomEvent struct {
	RoomID  uint64    `json:"roomId"`
	Players []uint64  `json:"players,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher receives room lifecycle events. Publish must not block the
// caller for long; it runs on the router goroutine.
type Publisher interface {
	Publish(subject string, ev RoomEvent)
	Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, RoomEvent) {}
func (nopPublisher) Close()                    {}

type natsPublisher struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNATSPublisher connects to url. An empty url yields a publisher that
// discards everything.
func NewNATSPublisher(url string, log *slog.Logger) (Publisher, error) {
	if url == "" {
		return nopPublisher{}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("arena-duel"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &natsPublisher{nc: nc, log: log}, nil
}

func (p *natsPublisher) Publish(subject string, ev RoomEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("encode event", "subject", subject, "err", err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn("publish event", "subject", subject, "err", err)
	}
}

func (p *natsPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
