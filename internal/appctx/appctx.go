// Package appctx provides context-based utilities for cross-cutting concerns.
package appctx

import (
	"context"
	"log/slog"

	"github.com/liveinsync/rentd/internal/identity"
)

type loggerKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// GetLogger returns the logger from the context, or slog.Default() if missing.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

type actorKey struct{}

// WithActor attaches the authenticated user to the context.
// Set by the session auth middleware after token verification.
func WithActor(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, actorKey{}, u)
}

// ActorFromContext returns the authenticated user from the context.
func ActorFromContext(ctx context.Context) (*identity.User, bool) {
	u, ok := ctx.Value(actorKey{}).(*identity.User)
	return u, ok && u != nil
}
