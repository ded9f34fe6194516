// Package cmd holds the startup plumbing shared by service commands: env
// then flag parsing, and a run wrapper that owns the tracer lifecycle.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"github.com/louisbranch/leaderboard/internal/platform/config"
	"github.com/louisbranch/leaderboard/internal/platform/otel"
	"github.com/louisbranch/leaderboard/internal/platform/timeouts"
)

// ServiceLeaderboard names the leaderboard service in telemetry and logs.
const ServiceLeaderboard = "leaderboard"

// ParseConfig fills cfg from LEADERBOARD_* environment variables.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs applies command-line flags on top of the env-derived values.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry installs tracing for service, runs run, and flushes
// pending spans before returning run's error.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
