// Package memory implements an in-memory persistence driver.
//
// All data is lost on process restart; intended for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements store.Store with mutex-guarded maps.
type Driver struct {
	mu       sync.RWMutex
	requests map[string]*store.MaintenanceRequest // by ID
	users    map[string]*identity.User            // by ID
	byEmail  map[string]string                    // email -> user ID
	closed   bool
}

// NewDriver creates a new in-memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	return &Driver{
		requests: make(map[string]*store.MaintenanceRequest),
		users:    make(map[string]*identity.User),
		byEmail:  make(map[string]string),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "memory"
}

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error {
	return nil
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// RequestStore implementation

func (d *Driver) CreateRequest(ctx context.Context, req *store.MaintenanceRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return store.ErrClosed
	}

	now := time.Now()
	rec := req.Clone()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	d.requests[rec.ID] = rec

	req.CreatedAt = now
	req.UpdatedAt = now
	return nil
}

func (d *Driver) GetRequest(ctx context.Context, id string) (*store.MaintenanceRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (d *Driver) ListRequestsByTenant(ctx context.Context, tenantID string) ([]*store.MaintenanceRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*store.MaintenanceRequest
	for _, rec := range d.requests {
		if rec.TenantID == tenantID {
			out = append(out, rec.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (d *Driver) ListRequestsByOwner(ctx context.Context, ownerID string) ([]*store.MaintenanceRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*store.MaintenanceRequest
	for _, rec := range d.requests {
		if rec.OwnerID == ownerID {
			out = append(out, rec.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (d *Driver) UpdateRequestCAS(ctx context.Context, req *store.MaintenanceRequest, expect store.Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.requests[req.ID]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Status != expect {
		return store.ErrStatusConflict
	}

	rec.Status = req.Status
	rec.ApprovedByTenant = req.ApprovedByTenant
	rec.OwnerNotes = req.OwnerNotes
	rec.UpdatedAt = time.Now()

	req.CreatedAt = rec.CreatedAt
	req.UpdatedAt = rec.UpdatedAt
	return nil
}

func sortNewestFirst(recs []*store.MaintenanceRequest) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

// UserStore implementation

func (d *Driver) Create(ctx context.Context, user *identity.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byEmail[user.Email]; exists {
		return identity.ErrUserExists
	}
	u := *user
	d.users[u.ID] = &u
	d.byEmail[u.Email] = u.ID
	return nil
}

func (d *Driver) Get(ctx context.Context, id string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (d *Driver) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	copy := *d.users[id]
	return &copy, nil
}

func (d *Driver) ListTenants(ctx context.Context, ownerID string) ([]*identity.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var tenants []*identity.User
	for _, u := range d.users {
		if u.Role == identity.RoleTenant && u.OwnerID == ownerID {
			copy := *u
			tenants = append(tenants, &copy)
		}
	}
	return tenants, nil
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	delete(d.byEmail, u.Email)
	delete(d.users, id)
	return nil
}

// Ensure Driver implements the combined store interface.
var _ store.Store = (*Driver)(nil)
