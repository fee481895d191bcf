// Package ratelimit provides rate limiting using the cache subsystem.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/liveinsync/rentd/internal/cache"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Config defines rate limiting parameters.
type Config struct {
	// RequestsPerWindow is the maximum requests allowed per window.
	RequestsPerWindow int64

	// Window is the time window for rate limiting.
	Window time.Duration

	// KeyPrefix is prepended to all rate limit keys.
	KeyPrefix string
}

// DefaultConfig returns sensible rate limiting defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:",
	}
}

// Limiter provides rate limiting using a cache backend.
type Limiter struct {
	cache  cache.Counter
	config *Config
}

// New creates a new rate limiter.
func New(c cache.Counter, cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Limiter{
		cache:  c,
		config: cfg,
	}
}

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Allow checks if a request is allowed for the given key.
// Returns the result with remaining quota and reset time.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	fullKey := l.config.KeyPrefix + key

	count, err := l.cache.Increment(ctx, fullKey, 1, l.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   time.Now().Add(l.config.Window),
	}, nil
}

// Check checks the rate limit without incrementing.
func (l *Limiter) Check(ctx context.Context, key string) (*Result, error) {
	fullKey := l.config.KeyPrefix + key

	count, err := l.cache.GetCount(ctx, fullKey)
	if err != nil {
		return nil, err
	}

	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count < l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   time.Now().Add(l.config.Window),
	}, nil
}

// Reset clears the rate limit for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	fullKey := l.config.KeyPrefix + key
	return l.cache.Reset(ctx, fullKey)
}
