package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/liveinsync/rentd/internal/cache/memory"
	"github.com/liveinsync/rentd/internal/ratelimit"
)

func newLimiter(t *testing.T, perWindow int64, window time.Duration) *ratelimit.Limiter {
	t.Helper()
	c := memory.New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	return ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: perWindow,
		Window:            window,
		KeyPrefix:         "test:",
	})
}

func TestLimiter_Allow(t *testing.T) {
	l := newLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := l.Allow(ctx, "u1")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if result.Remaining != int64(2-i) {
			t.Errorf("request %d: expected %d remaining, got %d", i, 2-i, result.Remaining)
		}
	}

	result, err := l.Allow(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Error("request over the quota should be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", result.Remaining)
	}
	if result.ResetAt.Before(time.Now()) {
		t.Error("reset time should be in the future")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := newLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if r, _ := l.Allow(ctx, "u1"); !r.Allowed {
		t.Fatal("u1 first request should pass")
	}
	if r, _ := l.Allow(ctx, "u1"); r.Allowed {
		t.Fatal("u1 second request should be denied")
	}
	if r, _ := l.Allow(ctx, "u2"); !r.Allowed {
		t.Error("u2 must not share u1's quota")
	}
}

func TestLimiter_WindowExpiry(t *testing.T) {
	l := newLimiter(t, 1, 30*time.Millisecond)
	ctx := context.Background()

	if r, _ := l.Allow(ctx, "u1"); !r.Allowed {
		t.Fatal("first request should pass")
	}
	if r, _ := l.Allow(ctx, "u1"); r.Allowed {
		t.Fatal("second request should be denied")
	}

	time.Sleep(60 * time.Millisecond)

	if r, _ := l.Allow(ctx, "u1"); !r.Allowed {
		t.Error("quota should reset after the window")
	}
}

func TestLimiter_CheckDoesNotConsume(t *testing.T) {
	l := newLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := l.Check(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if !result.Allowed || result.Remaining != 2 {
			t.Fatalf("check %d must not consume quota: %+v", i, result)
		}
	}

	if r, _ := l.Allow(ctx, "u1"); !r.Allowed {
		t.Error("quota should be untouched after checks")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := newLimiter(t, 1, time.Minute)
	ctx := context.Background()

	l.Allow(ctx, "u1")
	if r, _ := l.Allow(ctx, "u1"); r.Allowed {
		t.Fatal("should be denied before reset")
	}

	if err := l.Reset(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if r, _ := l.Allow(ctx, "u1"); !r.Allowed {
		t.Error("should be allowed after reset")
	}
}
