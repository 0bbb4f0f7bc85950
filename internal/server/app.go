package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// StartApp runs the arena server until SIGINT or SIGTERM.
func StartApp(cfg AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}

// Run serves cfg until ctx is cancelled, then drains connections, rooms
// and background jobs.
func Run(ctx context.Context, cfg AppConfig) error {
	log := NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	pub, err := NewNATSPublisher(cfg.NATSURL, log.With("component", "events"))
	if err != nil {
		return err
	}
	defer pub.Close()

	presence, err := NewRedisPresence(ctx, cfg.RedisAddr, cfg.PresenceInterval)
	if err != nil {
		return err
	}
	if presence != nil {
		defer presence.Close()
	}

	hub := NewHub(HubConfig{
		TickRate:  cfg.TickRate,
		Logger:    log,
		Publisher: pub,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(hubCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	sched, err := startJobs(cfg, hub, presence, log.With("component", "jobs"))
	if err != nil {
		return err
	}
	defer stopJobs(sched, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewMux(hub, cfg.StaticDir, log.With("component", "ws")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening",
			"addr", cfg.Addr,
			"production", cfg.Production,
			"tickRate", cfg.TickRate,
			"heartbeat", cfg.HeartbeatInterval,
			"static", cfg.StaticDir,
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	return nil
}
