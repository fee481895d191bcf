package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liveinsync/rentd/internal/api"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
}

// routeGroups defines all endpoint groups and their auth requirements.
// This table is the single source of truth for routing decisions.
var routeGroups = []RouteGroup{
	{Name: "api", PathPrefix: "/api", RequiresAuth: true},
	// The websocket endpoint authenticates via its own handshake frame;
	// session middleware must not gate the upgrade.
	{Name: "ws", PathPrefix: "/ws", RequiresAuth: false},
}

// publicExceptions are specific paths that don't require auth within
// otherwise protected groups.
var publicExceptions = []string{
	"/api/healthz",
	"/api/auth/login",
	"/api/auth/register",
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// IsAuthRequired checks if a given path requires authentication.
// This is used by the auth middleware to make gating decisions.
func IsAuthRequired(path string) bool {
	for _, exc := range publicExceptions {
		if pathMatchesPrefix(path, exc) {
			return false
		}
	}

	for _, rg := range routeGroups {
		if pathMatchesPrefix(path, rg.PathPrefix) {
			return rg.RequiresAuth
		}
	}

	// Default: require auth for unknown paths
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging)
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.authMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health endpoint (public)
		r.Get("/healthz", api.HealthHandler)

		// Auth endpoints (register/login public, logout authenticated)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
			r.Post("/logout", s.authHandler.Logout)
		})

		// Maintenance request endpoints (authenticated)
		r.Route("/maintenance-requests", func(r chi.Router) {
			r.Post("/", s.maintenanceHandler.HandleCreate)
			r.Get("/owner", s.maintenanceHandler.HandleListOwner)
			r.Get("/tenant", s.maintenanceHandler.HandleListTenant)
			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", s.maintenanceHandler.HandleGet)
				r.Patch("/", s.maintenanceHandler.HandleUpdate)
				r.Post("/approve", s.maintenanceHandler.HandleApprove)
				r.Post("/reject", s.maintenanceHandler.HandleReject)
				r.Post("/close", s.maintenanceHandler.HandleClose)
			})
		})
	})

	// Websocket push transport
	r.Get("/ws", s.transport.HandleWS)

	return r
}
