// Package identity provides user management, authentication, and session handling.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
)

// Role constants. Every user is exactly one of these.
const (
	RoleOwner  = "owner"
	RoleTenant = "tenant"
)

// IsValidRole reports whether s is a known role.
func IsValidRole(s string) bool {
	return s == RoleOwner || s == RoleTenant
}

// User represents an owner or tenant account.
type User struct {
	ID           string `json:"id"` // UUID
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"` // bcrypt hash, never serialized
	Role         string `json:"role"`

	// OwnerID and PropertyID are set for tenants only: the owner the
	// tenant rents from and the property they occupy.
	OwnerID    string `json:"owner_id,omitempty"`
	PropertyID string `json:"property_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsOwner returns true if the user is a property owner.
func (u *User) IsOwner() bool {
	return u.Role == RoleOwner
}

// IsTenant returns true if the user is a tenant.
func (u *User) IsTenant() bool {
	return u.Role == RoleTenant
}

// UserRepo provides user storage operations.
type UserRepo interface {
	// Create creates a new user. Returns ErrUserExists if the email is taken.
	Create(ctx context.Context, user *User) error

	// Get retrieves a user by ID. Returns ErrUserNotFound if not found.
	Get(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email. Returns ErrUserNotFound if not found.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// ListTenants returns all tenants belonging to the given owner.
	ListTenants(ctx context.Context, ownerID string) ([]*User, error)

	// Delete removes a user by ID.
	Delete(ctx context.Context, id string) error
}

// MemoryUserRepo is an in-memory implementation of UserRepo.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	users   map[string]*User  // by ID
	byEmail map[string]string // email -> ID
}

// NewMemoryUserRepo creates a new in-memory user repository.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepo) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrUserExists
	}
	u := *user
	r.users[u.ID] = &u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryUserRepo) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *r.users[id]
	return &copy, nil
}

func (r *MemoryUserRepo) ListTenants(ctx context.Context, ownerID string) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tenants []*User
	for _, u := range r.users {
		if u.Role == RoleTenant && u.OwnerID == ownerID {
			copy := *u
			tenants = append(tenants, &copy)
		}
	}
	return tenants, nil
}

func (r *MemoryUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.users, id)
	return nil
}
