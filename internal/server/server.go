// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/liveinsync/rentd/internal/api"
	"github.com/liveinsync/rentd/internal/config"
	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/maintenance"
	"github.com/liveinsync/rentd/internal/ratelimit"
	"github.com/liveinsync/rentd/internal/realtime"
	"github.com/liveinsync/rentd/internal/store"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: identity and auth
	Users    store.UserStore
	Sessions identity.SessionRepo
	Auth     *identity.UserAuth

	// Required: maintenance request persistence
	Requests store.RequestStore

	// Optional: per-tenant create quota (nil disables)
	Limiter *ratelimit.Limiter

	// Optional: per-host websocket connect quota (nil disables)
	HandshakeLimiter *ratelimit.Limiter
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	deps       *Deps

	authHandler        *api.AuthHandler
	maintenanceHandler *maintenance.Handler

	registry  *realtime.Registry
	bus       *realtime.Bus
	transport *realtime.Transport
	hub       *realtime.Hub
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	engine := maintenance.NewEngine(deps.Requests)

	registry := realtime.NewRegistry()
	bus := realtime.NewBus()
	transport := realtime.NewTransport(registry, deps.Users, realtime.TransportConfig{
		HandshakeTimeout: time.Duration(cfg.Realtime.HandshakeTimeoutMS) * time.Millisecond,
		WriteTimeout:     time.Duration(cfg.Realtime.WriteTimeoutMS) * time.Millisecond,
	}, deps.HandshakeLimiter, logger)
	hub := realtime.NewHub(bus, registry, transport, logger)

	s := &Server{
		cfg:                cfg,
		logger:             logger,
		deps:               deps,
		authHandler:        api.NewAuthHandler(deps.Users, deps.Sessions, deps.Auth, time.Duration(cfg.Session.TTLHours)*time.Hour),
		maintenanceHandler: maintenance.NewHandler(engine, hub, deps.Limiter),
		registry:           registry,
		bus:                bus,
		transport:          transport,
		hub:                hub,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Registry exposes the connection registry (used by tests and diagnostics).
func (s *Server) Registry() *realtime.Registry {
	return s.registry
}

// Handler returns the root HTTP handler (used by httptest servers).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins dispatching real-time events and serving HTTP.
// Blocks until the listener stops.
func (s *Server) Start() error {
	s.hub.Start()
	s.logger.Info("starting server", "addr", s.cfg.ListenAddr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server: stop accepting HTTP, close
// live websocket connections, then stop the event dispatcher.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	err := s.httpServer.Shutdown(ctx)
	s.transport.CloseAll()
	s.hub.Stop()
	s.bus.Close()
	return err
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.Users == nil {
		return fmt.Errorf("%w: Users", ErrMissingDep)
	}
	if deps.Sessions == nil {
		return fmt.Errorf("%w: Sessions", ErrMissingDep)
	}
	if deps.Auth == nil {
		return fmt.Errorf("%w: Auth", ErrMissingDep)
	}
	if deps.Requests == nil {
		return fmt.Errorf("%w: Requests", ErrMissingDep)
	}
	return nil
}
