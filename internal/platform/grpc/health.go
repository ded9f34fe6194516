// Package grpc hosts the gRPC health endpoint the leaderboard exposes for
// orchestrators, and the client helpers that probe it.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/louisbranch/leaderboard/internal/platform/timeouts"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves grpc.health.v1 with a status derived from periodic
// pings. The overall ("") and named service statuses always match.
type HealthServer struct {
	server   *gogrpc.Server
	health   *health.Server
	pinger   Pinger
	service  string
	interval time.Duration
}

// NewHealthServer builds a HealthServer that reports service as SERVING
// while pinger succeeds.
func NewHealthServer(service string, pinger Pinger, interval time.Duration) (*HealthServer, error) {
	if pinger == nil {
		return nil, errors.New("health pinger is required")
	}
	if interval <= 0 {
		interval = timeouts.HealthInterval
	}
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	return &HealthServer{
		server:   server,
		health:   healthServer,
		pinger:   pinger,
		service:  service,
		interval: interval,
	}, nil
}

// Refresh pings once and publishes the resulting status.
func (s *HealthServer) Refresh(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.HealthPing)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(pingCtx); err != nil {
		log.Printf("health ping failed: %v", err)
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	if s.service != "" {
		s.health.SetServingStatus(s.service, status)
	}
	return status
}

// Serve accepts health checks on listener until ctx ends, then stops
// gracefully.
func (s *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("health listener is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.Refresh(ctx)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				s.health.Shutdown()
				s.server.GracefulStop()
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	err := s.server.Serve(listener)
	close(done)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve health: %w", err)
	}
	return nil
}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			if logf != nil {
				logf("gRPC health check is SERVING")
			}
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for gRPC health: %v", err)
			} else {
				logf("waiting for gRPC health: status %s", response.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}
}
