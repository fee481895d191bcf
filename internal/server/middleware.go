package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/liveinsync/rentd/internal/api"
	"github.com/liveinsync/rentd/internal/appctx"
	"github.com/liveinsync/rentd/internal/identity"
)

// loggingMiddleware logs request information using slog and attaches a
// request-scoped logger to the context.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLogger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(appctx.WithLogger(r.Context(), reqLogger))

		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware enforces session authentication.
// Public endpoints (health, login, register, websocket upgrade) bypass it.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthRequired(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := api.ExtractSessionToken(r)
		if token == "" {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
			return
		}

		session, err := s.deps.Sessions.Get(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrSessionExpired) {
				api.WriteUnauthorized(w, api.ReasonSessionExpired, "session expired")
				return
			}
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "invalid session")
			return
		}

		user, err := s.deps.Users.Get(r.Context(), session.UserID)
		if err != nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "unknown user")
			return
		}

		ctx := appctx.WithActor(r.Context(), user)
		if l, ok := appctx.LoggerFromContext(ctx); ok {
			ctx = appctx.WithLogger(ctx, l.With("user_id", user.ID, "role", user.Role))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
