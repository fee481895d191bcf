package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liveinsync/rentd/internal/identity"
)

func TestUserAuth_HashAndVerify(t *testing.T) {
	auth := identity.NewUserAuth(4) // minimal cost for fast tests

	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the plaintext")
	}

	if err := auth.VerifyPassword(hash, "hunter2"); err != nil {
		t.Errorf("correct password should verify: %v", err)
	}
	if err := auth.VerifyPassword(hash, "wrong"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestUserAuth_Authenticate(t *testing.T) {
	ctx := context.Background()
	auth := identity.NewUserAuth(4)
	repo := identity.NewMemoryUserRepo()

	hash, err := auth.HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &identity.User{
		ID:           "u1",
		Email:        "a@example.com",
		PasswordHash: hash,
		Role:         identity.RoleOwner,
	}); err != nil {
		t.Fatal(err)
	}

	user, err := auth.Authenticate(ctx, repo, "a@example.com", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("expected u1, got %s", user.ID)
	}

	if _, err := auth.Authenticate(ctx, repo, "a@example.com", "nope"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := auth.Authenticate(ctx, repo, "nobody@example.com", "secret"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := identity.GenerateToken()
		if err != nil {
			t.Fatal(err)
		}
		if len(token) < 40 {
			t.Fatalf("token too short: %q", token)
		}
		if seen[token] {
			t.Fatal("token collision")
		}
		seen[token] = true
	}
}

func TestMemorySessionRepo(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemorySessionRepo()

	s, err := repo.Create(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Token == "" || s.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", s)
	}

	got, err := repo.Get(ctx, s.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("expected u1, got %s", got.UserID)
	}

	if _, err := repo.Get(ctx, "bogus"); !errors.Is(err, identity.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, s.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, s.Token); !errors.Is(err, identity.ErrSessionNotFound) {
		t.Errorf("deleted session should be gone, got %v", err)
	}
	if err := repo.Delete(ctx, s.Token); err != nil {
		t.Errorf("deleting a missing session is a no-op, got %v", err)
	}
}

func TestMemorySessionRepo_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemorySessionRepo()

	s, err := repo.Create(ctx, "u1", -time.Minute) // already expired
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Get(ctx, s.Token); !errors.Is(err, identity.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}

	live, err := repo.Create(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	removed, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired session removed, got %d", removed)
	}
	if _, err := repo.Get(ctx, live.Token); err != nil {
		t.Errorf("live session should survive the sweep: %v", err)
	}
}

func TestMemorySessionRepo_DeleteByUser(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemorySessionRepo()

	s1, _ := repo.Create(ctx, "u1", time.Hour)
	s2, _ := repo.Create(ctx, "u1", time.Hour)
	other, _ := repo.Create(ctx, "u2", time.Hour)

	if err := repo.DeleteByUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	for _, token := range []string{s1.Token, s2.Token} {
		if _, err := repo.Get(ctx, token); !errors.Is(err, identity.ErrSessionNotFound) {
			t.Errorf("u1 session should be gone, got %v", err)
		}
	}
	if _, err := repo.Get(ctx, other.Token); err != nil {
		t.Errorf("u2 session should survive: %v", err)
	}
}

func TestMemoryUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryUserRepo()

	owner := &identity.User{ID: "o1", Email: "o@example.com", Role: identity.RoleOwner}
	tenant := &identity.User{ID: "t1", Email: "t@example.com", Role: identity.RoleTenant, OwnerID: "o1"}
	for _, u := range []*identity.User{owner, tenant} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.Create(ctx, &identity.User{ID: "x", Email: "o@example.com"}); !errors.Is(err, identity.ErrUserExists) {
		t.Errorf("duplicate email: expected ErrUserExists, got %v", err)
	}

	tenants, err := repo.ListTenants(ctx, "o1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tenants) != 1 || tenants[0].ID != "t1" {
		t.Errorf("expected [t1], got %+v", tenants)
	}

	// Returned users are copies.
	got, _ := repo.Get(ctx, "o1")
	got.Name = "scribbled"
	again, _ := repo.Get(ctx, "o1")
	if again.Name == "scribbled" {
		t.Error("repo must return copies")
	}

	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	// The email is free again after deletion.
	if err := repo.Create(ctx, &identity.User{ID: "t2", Email: "t@example.com", Role: identity.RoleTenant}); err != nil {
		t.Errorf("email should be reusable after delete: %v", err)
	}
}
