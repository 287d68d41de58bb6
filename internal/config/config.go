// Package config reads the small set of environment variables the signaling
// server honors at startup: read a few env vars, fall back to a sane
// default, no flags/viper layer needed for this few knobs.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/diltdicker/redot-signalling-server/internal/signaling"
)

// Config is the process-level configuration: the listen address, log mode,
// metrics listen address, and the signaling.Config tunables.
type Config struct {
	Addr        string
	Production  bool
	MetricsAddr string
	Signaling   signaling.Config
}

// Load builds a Config from the environment:
//
//	PORT        listen port for the HTTP/WebSocket server (default 8080)
//	METRICS_PORT listen port for the /metrics endpoint (default 9090)
//	NODE_ENV    "production" selects JSON logs and hides debug output
//	MAX_CONNS   overrides the peer registry capacity
func Load() Config {
	cfg := Config{
		Addr:        ":" + envOr("PORT", "8080"),
		MetricsAddr: ":" + envOr("METRICS_PORT", "9090"),
		Production:  os.Getenv("NODE_ENV") == "production",
		Signaling:   signaling.DefaultConfig(),
	}

	if v, ok := envInt("MAX_CONNS"); ok {
		cfg.Signaling.MaxConns = v
	}
	if v, ok := envDuration("REAP_TIMEOUT"); ok {
		cfg.Signaling.ReapTimeout = v
	}
	if v, ok := envDuration("KEEPALIVE_INTERVAL"); ok {
		cfg.Signaling.KeepaliveInterval = v
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
