// Package main starts the leaderboard service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	leaderboardcmd "github.com/louisbranch/leaderboard/internal/cmd/leaderboard"
	"github.com/louisbranch/leaderboard/internal/platform/config"
	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
)

func main() {
	cfg, err := leaderboardcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[LEADERBOARD] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := leaderboardcmd.Run(ctx, cfg); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeDBLogin {
			config.Exitf("%s", apperrors.EnvelopeCode(err))
		}
		if cfg.HealthCheck {
			log.Fatalf("health check: %v", err)
		}
		log.Fatalf("failed to serve: %v", err)
	}
}
