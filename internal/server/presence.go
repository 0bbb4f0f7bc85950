package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PresenceStore mirrors this instance's online numbers somewhere other
// instances and dashboards can read them.
type PresenceStore interface {
	Store(ctx context.Context, s Stats) error
	Close() error
}

type redisPresence struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisPresence returns nil when addr is empty. Each process writes
// its own hash so a crashed instance simply expires.
func NewRedisPresence(ctx context.Context, addr string, interval time.Duration) (PresenceStore, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &redisPresence{
		rdb: rdb,
		key: "arena:presence:" + uuid.NewString(),
		ttl: 3 * interval,
	}, nil
}

func (p *redisPresence) Store(ctx context.Context, s Stats) error {
	running := 0
	for _, r := range s.Rooms {
		if r.State == "running" {
			running++
		}
	}
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, p.key,
		"online", s.Online,
		"queue", s.Queue,
		"rooms", len(s.Rooms),
		"matches", running,
		"updatedAt", time.Now().UnixMilli(),
	)
	pipe.Expire(ctx, p.key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store presence: %w", err)
	}
	return nil
}

func (p *redisPresence) Close() error {
	return p.rdb.Close()
}
