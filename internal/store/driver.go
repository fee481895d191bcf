// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"

	"github.com/liveinsync/rentd/internal/identity"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("not found")

	// ErrStatusConflict is returned by UpdateRequestCAS when the persisted
	// status no longer matches the expected status. The losing side of a
	// concurrent transition race observes this.
	ErrStatusConflict = errors.New("status conflict")

	ErrClosed = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string
}

// RequestStore defines operations for maintenance request persistence.
type RequestStore interface {
	// CreateRequest persists a new request. Timestamps are set by the store.
	CreateRequest(ctx context.Context, req *MaintenanceRequest) error

	// GetRequest retrieves a request by id. Returns ErrNotFound if missing.
	GetRequest(ctx context.Context, id string) (*MaintenanceRequest, error)

	// ListRequestsByTenant returns the tenant's requests, newest first.
	ListRequestsByTenant(ctx context.Context, tenantID string) ([]*MaintenanceRequest, error)

	// ListRequestsByOwner returns requests for the owner's properties, newest first.
	ListRequestsByOwner(ctx context.Context, ownerID string) ([]*MaintenanceRequest, error)

	// UpdateRequestCAS writes the request's mutable fields (status,
	// approval flag, owner notes) if and only if the persisted status
	// still equals expect. Returns ErrStatusConflict otherwise, leaving
	// the record unmodified. UpdatedAt is refreshed on success.
	UpdateRequestCAS(ctx context.Context, req *MaintenanceRequest, expect Status) error
}

// UserStore defines operations for durable user persistence.
// It matches the identity repository contract so drivers can back
// the identity service directly.
type UserStore = identity.UserRepo

// Store combines the driver lifecycle with the record stores.
type Store interface {
	Driver
	RequestStore
	UserStore
}
