// Package leaderboard parses leaderboard service flags and launches the
// service or its health probe.
package leaderboard

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"strings"

	entrypoint "github.com/louisbranch/leaderboard/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/leaderboard/internal/platform/grpc"
	"github.com/louisbranch/leaderboard/internal/platform/timeouts"
	server "github.com/louisbranch/leaderboard/internal/services/leaderboard/app"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/nonce"
)

// Config holds leaderboard command configuration. Environment variables
// carry the LEADERBOARD_ prefix.
type Config struct {
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath       string `env:"DB_PATH" envDefault:"data/leaderboard.db"`
	SharedSecret string `env:"SHARED_SECRET" envDefault:"1234567890"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"65536"`
	TrustProxy   bool   `env:"TRUST_PROXY" envDefault:"false"`
	HealthAddr   string `env:"HEALTH_ADDR"`

	// HealthCheck probes HealthAddr instead of serving.
	HealthCheck bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "The leaderboard HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The leaderboard SQLite database path")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The gRPC health listen address (empty disables it)")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the gRPC health listener and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.SharedSecret == "" {
		cfg.SharedSecret = nonce.DefaultSharedSecret
	}
	return cfg, nil
}

// Run starts the leaderboard service, or probes a running one when
// HealthCheck is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.HealthCheck {
		return Probe(ctx, cfg)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLeaderboard, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:     cfg.HTTPAddr,
			HealthAddr:   cfg.HealthAddr,
			DBPath:       cfg.DBPath,
			SharedSecret: cfg.SharedSecret,
			MaxBodyBytes: cfg.MaxBodyBytes,
			TrustProxy:   cfg.TrustProxy,
		})
	})
}

// Probe waits for the health listener at cfg.HealthAddr to report SERVING.
func Probe(ctx context.Context, cfg Config) error {
	addr := probeTarget(cfg.HealthAddr)
	if addr == "" {
		return errors.New("health address is required for -healthcheck")
	}
	return platformgrpc.ProbeHealth(ctx, addr, server.HealthService, timeouts.HealthProbe, log.Printf)
}

// probeTarget turns a listen address into a dialable one; an empty or
// wildcard host means the local machine.
func probeTarget(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
