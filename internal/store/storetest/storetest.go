// Package storetest provides a conformance suite that every persistence
// driver must pass. Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/store"
)

// Factory returns a fresh, initialized store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against the driver under test.
func Run(t *testing.T, factory Factory) {
	t.Run("RequestRoundtrip", func(t *testing.T) { testRequestRoundtrip(t, factory(t)) })
	t.Run("RequestNotFound", func(t *testing.T) { testRequestNotFound(t, factory(t)) })
	t.Run("RequestListing", func(t *testing.T) { testRequestListing(t, factory(t)) })
	t.Run("CASUpdate", func(t *testing.T) { testCASUpdate(t, factory(t)) })
	t.Run("CASConflict", func(t *testing.T) { testCASConflict(t, factory(t)) })
	t.Run("CASMissing", func(t *testing.T) { testCASMissing(t, factory(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, factory(t)) })
}

func newRequest(id, tenantID, ownerID string) *store.MaintenanceRequest {
	return &store.MaintenanceRequest{
		ID:          id,
		TenantID:    tenantID,
		OwnerID:     ownerID,
		PropertyID:  "prop-1",
		Title:       "Leaky faucet",
		Description: "Dripping in the kitchen",
		Priority:    store.PriorityMedium,
		Status:      store.StatusPending,
	}
}

func testRequestRoundtrip(t *testing.T, db store.Store) {
	ctx := context.Background()

	req := newRequest("r1", "t1", "o1")
	if err := db.CreateRequest(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.CreatedAt.IsZero() || req.UpdatedAt.IsZero() {
		t.Error("create should stamp timestamps")
	}

	got, err := db.GetRequest(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != req.Title || got.Status != store.StatusPending || got.TenantID != "t1" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	// Mutating the returned record must not affect the stored one.
	got.Title = "scribbled"
	again, err := db.GetRequest(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Title != "Leaky faucet" {
		t.Error("returned records must be copies")
	}
}

func testRequestNotFound(t *testing.T, db store.Store) {
	_, err := db.GetRequest(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testRequestListing(t *testing.T, db store.Store) {
	ctx := context.Background()

	for i, id := range []string{"r1", "r2", "r3"} {
		tenantID := "t1"
		if i == 2 {
			tenantID = "t2"
		}
		if err := db.CreateRequest(ctx, newRequest(id, tenantID, "o1")); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		// Distinct creation times so newest-first ordering is observable.
		time.Sleep(5 * time.Millisecond)
	}

	byTenant, err := db.ListRequestsByTenant(ctx, "t1")
	if err != nil {
		t.Fatalf("list by tenant: %v", err)
	}
	if len(byTenant) != 2 {
		t.Fatalf("expected 2 for t1, got %d", len(byTenant))
	}
	if byTenant[0].ID != "r2" || byTenant[1].ID != "r1" {
		t.Errorf("expected newest first [r2 r1], got [%s %s]", byTenant[0].ID, byTenant[1].ID)
	}

	byOwner, err := db.ListRequestsByOwner(ctx, "o1")
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(byOwner) != 3 {
		t.Errorf("expected 3 for o1, got %d", len(byOwner))
	}

	empty, err := db.ListRequestsByTenant(ctx, "nobody")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no requests, got %d", len(empty))
	}
}

func testCASUpdate(t *testing.T, db store.Store) {
	ctx := context.Background()

	req := newRequest("r1", "t1", "o1")
	if err := db.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	req.Status = store.StatusInProgress
	req.OwnerNotes = "plumber scheduled"
	if err := db.UpdateRequestCAS(ctx, req, store.StatusPending); err != nil {
		t.Fatalf("cas update: %v", err)
	}

	got, err := db.GetRequest(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusInProgress {
		t.Errorf("expected in_progress, got %s", got.Status)
	}
	if got.OwnerNotes != "plumber scheduled" {
		t.Errorf("notes should be updated, got %q", got.OwnerNotes)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("updated_at should move forward")
	}
}

func testCASConflict(t *testing.T, db store.Store) {
	ctx := context.Background()

	req := newRequest("r1", "t1", "o1")
	if err := db.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	// A stale expectation loses the swap and leaves the record untouched.
	stale := req.Clone()
	stale.Status = store.StatusCompleted
	err := db.UpdateRequestCAS(ctx, stale, store.StatusInProgress)
	if !errors.Is(err, store.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	got, err := db.GetRequest(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusPending {
		t.Errorf("losing swap must not write, got %s", got.Status)
	}
}

func testCASMissing(t *testing.T, db store.Store) {
	req := newRequest("ghost", "t1", "o1")
	err := db.UpdateRequestCAS(context.Background(), req, store.StatusPending)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testUsers(t *testing.T, db store.Store) {
	ctx := context.Background()

	owner := &identity.User{
		ID:        "o1",
		Email:     "owner@example.com",
		Name:      "Olive Owner",
		Role:      identity.RoleOwner,
		CreatedAt: time.Now(),
	}
	tenant := &identity.User{
		ID:         "t1",
		Email:      "tenant@example.com",
		Name:       "Terry Tenant",
		Role:       identity.RoleTenant,
		OwnerID:    "o1",
		PropertyID: "prop-1",
		CreatedAt:  time.Now(),
	}
	for _, u := range []*identity.User{owner, tenant} {
		if err := db.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.ID, err)
		}
	}

	if err := db.Create(ctx, &identity.User{ID: "dup", Email: "owner@example.com", Role: identity.RoleOwner}); !errors.Is(err, identity.ErrUserExists) {
		t.Errorf("duplicate email: expected ErrUserExists, got %v", err)
	}

	got, err := db.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerID != "o1" || got.PropertyID != "prop-1" {
		t.Errorf("tenant fields lost: %+v", got)
	}

	byEmail, err := db.GetByEmail(ctx, "owner@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != "o1" {
		t.Errorf("expected o1, got %s", byEmail.ID)
	}

	if _, err := db.Get(ctx, "missing"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := db.GetByEmail(ctx, "missing@example.com"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	tenants, err := db.ListTenants(ctx, "o1")
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	if len(tenants) != 1 || tenants[0].ID != "t1" {
		t.Errorf("expected [t1], got %+v", tenants)
	}

	if err := db.Delete(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get(ctx, "t1"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("deleted user should be gone, got %v", err)
	}
	if err := db.Delete(ctx, "t1"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("double delete: expected ErrUserNotFound, got %v", err)
	}
}
