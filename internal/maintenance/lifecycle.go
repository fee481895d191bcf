// Package maintenance implements the maintenance request lifecycle.
//
// The Engine is the sole writer of a request's status and tenant-approval
// flag. Every accepted transition returns the updated record; the caller
// forwards it to the notification layer. Delivery is decoupled on purpose:
// a push failure can never invalidate a persisted state change.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/store"
)

var (
	// ErrInvalidTransition is returned when the requested event does not
	// match the record's current status. CAS losers in concurrent
	// transition races surface this too.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrForbidden is returned when the actor lacks permission over the
	// request. Checked before the state check.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed input (empty title, bad priority).
	ErrValidation = errors.New("validation failed")
)

// Engine validates and applies status transitions against the request store.
type Engine struct {
	requests store.RequestStore
}

// NewEngine creates a lifecycle engine over the given request store.
func NewEngine(requests store.RequestStore) *Engine {
	return &Engine{requests: requests}
}

// CreateInput is the tenant-supplied payload for a new request.
type CreateInput struct {
	Title       string
	Description string
	Priority    store.Priority
}

// Create files a new maintenance request for the acting tenant.
// The owner and property are derived from the tenant's record.
func (e *Engine) Create(ctx context.Context, actor *identity.User, in CreateInput) (*store.MaintenanceRequest, error) {
	if !actor.IsTenant() {
		return nil, ErrForbidden
	}
	if in.Title == "" || in.Description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrValidation)
	}
	if !store.IsValidPriority(in.Priority) {
		return nil, fmt.Errorf("%w: priority must be low, medium or high", ErrValidation)
	}

	rec := &store.MaintenanceRequest{
		ID:          uuid.NewString(),
		TenantID:    actor.ID,
		OwnerID:     actor.OwnerID,
		PropertyID:  actor.PropertyID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      store.StatusPending,
	}

	if err := e.requests.CreateRequest(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// StartWork moves a pending request to in_progress. Owner action.
func (e *Engine) StartWork(ctx context.Context, actor *identity.User, id string) (*store.MaintenanceRequest, error) {
	return e.transition(ctx, actor, id, func(rec *store.MaintenanceRequest) error {
		if err := requireOwner(actor, rec); err != nil {
			return err
		}
		if rec.Status != store.StatusPending {
			return ErrInvalidTransition
		}
		rec.Status = store.StatusInProgress
		return nil
	})
}

// MarkCompleted moves an in_progress request to completed. Owner action.
// The tenant-approval flag is reset; the tenant must sign off explicitly.
func (e *Engine) MarkCompleted(ctx context.Context, actor *identity.User, id string, notes string) (*store.MaintenanceRequest, error) {
	return e.transition(ctx, actor, id, func(rec *store.MaintenanceRequest) error {
		if err := requireOwner(actor, rec); err != nil {
			return err
		}
		if rec.Status != store.StatusInProgress {
			return ErrInvalidTransition
		}
		rec.Status = store.StatusCompleted
		rec.ApprovedByTenant = false
		if notes != "" {
			rec.OwnerNotes = notes
		}
		return nil
	})
}

// Approve records the tenant's sign-off on completed work. The status
// stays completed; only the approval flag changes.
func (e *Engine) Approve(ctx context.Context, actor *identity.User, id string) (*store.MaintenanceRequest, error) {
	return e.transition(ctx, actor, id, func(rec *store.MaintenanceRequest) error {
		if err := requireTenant(actor, rec); err != nil {
			return err
		}
		if rec.Status != store.StatusCompleted {
			return ErrInvalidTransition
		}
		rec.ApprovedByTenant = true
		return nil
	})
}

// Reject disputes completed work and reopens it: completed -> in_progress.
// Tenant action.
func (e *Engine) Reject(ctx context.Context, actor *identity.User, id string) (*store.MaintenanceRequest, error) {
	return e.transition(ctx, actor, id, func(rec *store.MaintenanceRequest) error {
		if err := requireTenant(actor, rec); err != nil {
			return err
		}
		if rec.Status != store.StatusCompleted {
			return ErrInvalidTransition
		}
		rec.Status = store.StatusInProgress
		rec.ApprovedByTenant = false
		return nil
	})
}

// Close finalizes an approved completed request. Owner action; closed is
// terminal.
func (e *Engine) Close(ctx context.Context, actor *identity.User, id string) (*store.MaintenanceRequest, error) {
	return e.transition(ctx, actor, id, func(rec *store.MaintenanceRequest) error {
		if err := requireOwner(actor, rec); err != nil {
			return err
		}
		if rec.Status != store.StatusCompleted || !rec.ApprovedByTenant {
			return ErrInvalidTransition
		}
		rec.Status = store.StatusClosed
		return nil
	})
}

// UpdateNotes updates the owner's notes without moving the state machine.
// Rejected on closed requests.
func (e *Engine) UpdateNotes(ctx context.Context, actor *identity.User, id string, notes string) (*store.MaintenanceRequest, error) {
	return e.transition(ctx, actor, id, func(rec *store.MaintenanceRequest) error {
		if err := requireOwner(actor, rec); err != nil {
			return err
		}
		if rec.IsTerminal() {
			return ErrInvalidTransition
		}
		rec.OwnerNotes = notes
		return nil
	})
}

// Get returns a request if the actor participates in it.
func (e *Engine) Get(ctx context.Context, actor *identity.User, id string) (*store.MaintenanceRequest, error) {
	rec, err := e.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParticipant(actor, rec) {
		return nil, ErrForbidden
	}
	return rec, nil
}

// ListForActor returns the actor's requests: a tenant sees their own,
// an owner sees every request for their properties. Newest first.
func (e *Engine) ListForActor(ctx context.Context, actor *identity.User) ([]*store.MaintenanceRequest, error) {
	if actor.IsOwner() {
		return e.requests.ListRequestsByOwner(ctx, actor.ID)
	}
	return e.requests.ListRequestsByTenant(ctx, actor.ID)
}

// transition loads the record, applies mutate after permission/state
// checks, and writes back with a compare-and-swap on the loaded status.
// A CAS conflict means a concurrent transition won the race; the loser
// fails with ErrInvalidTransition and the record is left as the winner
// wrote it.
func (e *Engine) transition(ctx context.Context, actor *identity.User, id string, mutate func(*store.MaintenanceRequest) error) (*store.MaintenanceRequest, error) {
	rec, err := e.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	expect := rec.Status
	if err := mutate(rec); err != nil {
		return nil, err
	}

	if err := e.requests.UpdateRequestCAS(ctx, rec, expect); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return rec, nil
}

// requireOwner checks that the actor is the owner of the request's property.
func requireOwner(actor *identity.User, rec *store.MaintenanceRequest) error {
	if !actor.IsOwner() || rec.OwnerID != actor.ID {
		return ErrForbidden
	}
	return nil
}

// requireTenant checks that the actor is the tenant who filed the request.
func requireTenant(actor *identity.User, rec *store.MaintenanceRequest) error {
	if !actor.IsTenant() || rec.TenantID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func isParticipant(actor *identity.User, rec *store.MaintenanceRequest) bool {
	return rec.OwnerID == actor.ID || rec.TenantID == actor.ID
}
