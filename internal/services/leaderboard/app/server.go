// Package server wires the leaderboard runtime and its HTTP and health
// lifecycles.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"

	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
	platformgrpc "github.com/louisbranch/leaderboard/internal/platform/grpc"
	"github.com/louisbranch/leaderboard/internal/platform/timeouts"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/api/httpapi"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/command"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/nonce"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/observability"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/score"
	leaderboardsqlite "github.com/louisbranch/leaderboard/internal/services/leaderboard/storage/sqlite"
)

// HealthService is the grpc.health.v1 service name the health server reports.
const HealthService = "leaderboard"

// Config defines startup inputs for the leaderboard server.
type Config struct {
	HTTPAddr     string
	HealthAddr   string
	DBPath       string
	SharedSecret string
	MaxBodyBytes int64
	TrustProxy   bool
}

// Server hosts the leaderboard HTTP endpoint, the optional health listener
// and the store they share.
type Server struct {
	listener       net.Listener
	httpServer     *http.Server
	healthListener net.Listener
	health         *platformgrpc.HealthServer
	store          *leaderboardsqlite.Store
}

// New opens the store and binds the listeners. A store that cannot be
// opened is reported as a db_login_error.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	dbPath := strings.TrimSpace(cfg.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join("data", "leaderboard.db")
	}
	secret := cfg.SharedSecret
	if secret == "" {
		secret = nonce.DefaultSharedSecret
	}

	store, err := leaderboardsqlite.Open(ctx, dbPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDBLogin, "open leaderboard store", err)
	}
	s := &Server{store: store}

	handler, err := newHandler(store, secret, cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("compose leaderboard handler: %w", err)
	}

	s.listener, err = net.Listen("tcp", httpAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	if healthAddr := strings.TrimSpace(cfg.HealthAddr); healthAddr != "" {
		s.health, err = platformgrpc.NewHealthServer(HealthService, store, timeouts.HealthInterval)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.healthListener, err = net.Listen("tcp", healthAddr)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("listen on %s: %w", healthAddr, err)
		}
	}
	return s, nil
}

func newHandler(store *leaderboardsqlite.Store, secret string, cfg Config) (http.Handler, error) {
	auth, err := nonce.NewAuthenticator(store, secret)
	if err != nil {
		return nil, err
	}
	scores, err := score.NewService(store)
	if err != nil {
		return nil, err
	}
	dispatcher, err := command.NewDispatcher(auth, scores, observability.New(log.Default()))
	if err != nil {
		return nil, err
	}
	return httpapi.NewHandler(httpapi.Config{
		Dispatcher:   dispatcher,
		Pinger:       store,
		MaxBodyBytes: cfg.MaxBodyBytes,
		TrustProxy:   cfg.TrustProxy,
	})
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the health listener address, or "" when disabled.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Run creates and serves a leaderboard server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve handles traffic until ctx ends or either listener fails, then
// drains in-flight requests and releases resources.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// healthErr stays nil when the health listener is disabled, so its
	// select case never fires.
	var healthErr chan error
	if s.health != nil {
		healthErr = make(chan error, 1)
		log.Printf("leaderboard health listening at %v", s.healthListener.Addr())
		go func() {
			healthErr <- s.health.Serve(ctx, s.healthListener)
		}()
	}

	log.Printf("leaderboard server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	var errs []error
	select {
	case <-ctx.Done():
		errs = append(errs, s.shutdownHTTP())
	case httpErr := <-serveErr:
		if !errors.Is(httpErr, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("serve leaderboard http: %w", httpErr))
		}
	case err := <-healthErr:
		healthErr = nil
		if err == nil && ctx.Err() == nil {
			err = errors.New("health server stopped")
		}
		errs = append(errs, err, s.shutdownHTTP())
	}
	cancel()
	if healthErr != nil {
		errs = append(errs, <-healthErr)
	}
	return errors.Join(errs...)
}

func (s *Server) shutdownHTTP() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown leaderboard http server: %w", err)
	}
	return nil
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close leaderboard store: %v", err)
		}
		s.store = nil
	}
}
