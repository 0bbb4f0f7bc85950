package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ArenaDuel/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "err", err)
	}

	configPath := flag.String("config", "", "path to arena tuning JSON (default configs/arena.json)")
	addr := flag.String("addr", "", "address to listen on (e.g., :3000)")
	tickRate := flag.Int("tick-rate", 0, "simulation ticks per second")
	heartbeat := flag.Duration("heartbeat", 0, "keep-alive probe interval")
	static := flag.String("static", "", "directory of client files to serve")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	logFormat := flag.String("log-format", "", "text or json")
	natsURL := flag.String("nats", "", "NATS url for room lifecycle events")
	redisAddr := flag.String("redis", "", "redis address for presence")
	flag.Parse()

	// Only flags given on the command line override lower layers.
	var o server.ConfigOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			o.ConfigPath = configPath
		case "addr":
			o.Addr = addr
		case "tick-rate":
			o.TickRate = tickRate
		case "heartbeat":
			o.HeartbeatInterval = heartbeat
		case "static":
			o.StaticDir = static
		case "log-level":
			o.LogLevel = logLevel
		case "log-format":
			o.LogFormat = logFormat
		case "nats":
			o.NATSURL = natsURL
		case "redis":
			o.RedisAddr = redisAddr
		}
	})

	cfg, err := server.ResolveConfig(os.Getenv, o)
	if err != nil {
		slog.Warn("config file", "err", err, "path", cfg.TuningPath)
	}

	start := time.Now()
	if err := server.StartApp(cfg); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("server exited", "uptime", time.Since(start).Round(time.Second))
}
