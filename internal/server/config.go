package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ArenaDuel/internal/game"
)

type AppConfig struct {
	Addr              string
	Production        bool
	TickRate          int
	HeartbeatInterval time.Duration
	PresenceInterval  time.Duration
	ShutdownTimeout   time.Duration
	TuningPath        string
	StaticDir         string
	LogLevel          string
	LogFormat         string
	NATSURL           string
	RedisAddr         string
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		Addr:              ":3000",
		TickRate:          game.DevTickRate,
		HeartbeatInterval: 15 * time.Second,
		PresenceInterval:  5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		TuningPath:        "configs/arena.json",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// productionProfile trades tick rate for bandwidth and probes idle
// connections less often.
func productionProfile(cfg AppConfig) AppConfig {
	cfg.Production = true
	cfg.TickRate = game.ProdTickRate
	cfg.HeartbeatInterval = 30 * time.Second
	return cfg
}

/* ------------------------------ Env ------------------------------ */

// IsProduction reports whether the environment asks for the production
// profile. A set PORT implies it, matching how hosted deployments are
// detected.
func IsProduction(getenv func(string) string) bool {
	env := strings.ToLower(firstNonEmpty(getenv("APP_ENV"), getenv("NODE_ENV")))
	return env == "production" || getenv("PORT") != ""
}

// ApplyEnv layers explicit environment values over cfg.
func ApplyEnv(cfg AppConfig, getenv func(string) string) AppConfig {
	if port := getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if v := getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v, err := strconv.Atoi(getenv("TICK_RATE")); err == nil {
		cfg.TickRate = v
	}
	if v, err := time.ParseDuration(getenv("HEARTBEAT_INTERVAL")); err == nil {
		cfg.HeartbeatInterval = v
	}
	if v := getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	return cfg
}

// ResolveConfig builds the effective configuration. Later layers win:
// defaults, production profile, JSON file, environment, flags.
func ResolveConfig(getenv func(string) string, o ConfigOverrides) (AppConfig, error) {
	cfg := DefaultAppConfig()
	if v := getenv("CONFIG_PATH"); v != "" {
		cfg.TuningPath = v
	}
	if o.ConfigPath != nil {
		cfg.TuningPath = *o.ConfigPath
	}
	if IsProduction(getenv) {
		cfg = productionProfile(cfg)
	}
	cfg, err := LoadConfigFile(cfg)
	cfg = ApplyEnv(cfg, getenv)
	cfg = o.Apply(cfg)
	return Sanitize(cfg), err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

/* ------------------------------ File ------------------------------ */

type serverFileConfig struct {
	TickRate         *int     `json:"tickRate"`
	HeartbeatSeconds *float64 `json:"heartbeatSeconds"`
	PresenceSeconds  *float64 `json:"presenceSeconds"`
	StaticDir        *string  `json:"staticDir"`
}

type arenaFileConfig struct {
	Server *serverFileConfig `json:"server"`
}

func mergeFileConfig(base AppConfig, fc *serverFileConfig) AppConfig {
	if fc == nil {
		return base
	}
	if fc.TickRate != nil {
		base.TickRate = *fc.TickRate
	}
	if fc.HeartbeatSeconds != nil {
		base.HeartbeatInterval = seconds(*fc.HeartbeatSeconds)
	}
	if fc.PresenceSeconds != nil {
		base.PresenceInterval = seconds(*fc.PresenceSeconds)
	}
	if fc.StaticDir != nil {
		base.StaticDir = *fc.StaticDir
	}
	return base
}

// LoadConfigFile merges the JSON file at cfg.TuningPath over cfg. A
// missing file is not an error.
func LoadConfigFile(cfg AppConfig) (AppConfig, error) {
	if cfg.TuningPath == "" {
		return cfg, nil
	}
	cleanPath := filepath.Clean(cfg.TuningPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", cleanPath, err)
	}
	var fc arenaFileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", cleanPath, err)
	}
	return mergeFileConfig(cfg, fc.Server), nil
}

/* ---------------------------- Overrides ---------------------------- */

// ConfigOverrides carries command-line values; nil fields were not set.
type ConfigOverrides struct {
	ConfigPath        *string
	Addr              *string
	TickRate          *int
	HeartbeatInterval *time.Duration
	StaticDir         *string
	LogLevel          *string
	LogFormat         *string
	NATSURL           *string
	RedisAddr         *string
}

func (o ConfigOverrides) Apply(base AppConfig) AppConfig {
	if o.Addr != nil {
		base.Addr = *o.Addr
	}
	if o.TickRate != nil {
		base.TickRate = *o.TickRate
	}
	if o.HeartbeatInterval != nil {
		base.HeartbeatInterval = *o.HeartbeatInterval
	}
	if o.StaticDir != nil {
		base.StaticDir = *o.StaticDir
	}
	if o.LogLevel != nil {
		base.LogLevel = *o.LogLevel
	}
	if o.LogFormat != nil {
		base.LogFormat = *o.LogFormat
	}
	if o.NATSURL != nil {
		base.NATSURL = *o.NATSURL
	}
	if o.RedisAddr != nil {
		base.RedisAddr = *o.RedisAddr
	}
	return base
}

// Sanitize pulls out-of-range values back to something runnable.
func Sanitize(cfg AppConfig) AppConfig {
	def := DefaultAppConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.TickRate > 240 {
		cfg.TickRate = 240
	}
	if cfg.HeartbeatInterval < time.Second {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.PresenceInterval < time.Second {
		cfg.PresenceInterval = def.PresenceInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
