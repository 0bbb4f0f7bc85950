package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// startJobs schedules the keep-alive sweep and, when a presence store
// is configured, the presence mirror. The caller must Shutdown the
// returned scheduler.
func startJobs(cfg AppConfig, hub *Hub, presence PresenceStore, log *slog.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.HeartbeatInterval),
		gocron.NewTask(hub.SweepKeepAlive),
		gocron.WithName("keepalive"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule keepalive: %w", err)
	}

	if presence != nil {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.PresenceInterval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.PresenceInterval)
				defer cancel()
				if err := mirrorPresence(ctx, hub, presence); err != nil {
					log.Warn("presence", "err", err)
				}
			}),
			gocron.WithName("presence"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule presence: %w", err)
		}
	}

	sched.Start()
	log.Info("jobs started", "heartbeat", cfg.HeartbeatInterval, "presence", presence != nil)
	return sched, nil
}

func mirrorPresence(ctx context.Context, hub *Hub, presence PresenceStore) error {
	st, err := hub.Stats(ctx)
	if err != nil {
		return err
	}
	return presence.Store(ctx, st)
}

func stopJobs(sched gocron.Scheduler, log *slog.Logger) {
	start := time.Now()
	if err := sched.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", "err", err)
		return
	}
	log.Debug("jobs stopped", "took", time.Since(start))
}
