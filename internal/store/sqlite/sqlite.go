// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Store interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "rentd.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&store.MaintenanceRequest{},
		&userRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RequestStore implementation

// CreateRequest persists a new maintenance request.
func (d *Driver) CreateRequest(ctx context.Context, req *store.MaintenanceRequest) error {
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now

	result := d.db.WithContext(ctx).Create(req)
	return result.Error
}

// GetRequest retrieves a request by id.
func (d *Driver) GetRequest(ctx context.Context, id string) (*store.MaintenanceRequest, error) {
	var rec store.MaintenanceRequest
	result := d.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &rec, nil
}

// ListRequestsByTenant returns the tenant's requests, newest first.
func (d *Driver) ListRequestsByTenant(ctx context.Context, tenantID string) ([]*store.MaintenanceRequest, error) {
	var recs []*store.MaintenanceRequest
	result := d.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&recs)
	return recs, result.Error
}

// ListRequestsByOwner returns requests for the owner's properties, newest first.
func (d *Driver) ListRequestsByOwner(ctx context.Context, ownerID string) ([]*store.MaintenanceRequest, error) {
	var recs []*store.MaintenanceRequest
	result := d.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&recs)
	return recs, result.Error
}

// UpdateRequestCAS writes mutable fields if the persisted status still
// matches expect. The WHERE clause on status makes the update atomic; a
// zero row count distinguishes the CAS loser from a missing record.
func (d *Driver) UpdateRequestCAS(ctx context.Context, req *store.MaintenanceRequest, expect store.Status) error {
	now := time.Now()
	result := d.db.WithContext(ctx).
		Model(&store.MaintenanceRequest{}).
		Where("id = ? AND status = ?", req.ID, expect).
		Updates(map[string]any{
			"status":             req.Status,
			"approved_by_tenant": req.ApprovedByTenant,
			"owner_notes":        req.OwnerNotes,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := d.db.WithContext(ctx).
			Model(&store.MaintenanceRequest{}).
			Where("id = ?", req.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return store.ErrNotFound
		}
		return store.ErrStatusConflict
	}

	req.UpdatedAt = now
	return nil
}

// userRecord is the persisted form of identity.User.
type userRecord struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex"`
	Name         string
	PasswordHash string
	Role         string `gorm:"index"`
	OwnerID      string `gorm:"index"`
	PropertyID   string
	CreatedAt    time.Time
}

func (userRecord) TableName() string {
	return "users"
}

func toUserRecord(u *identity.User) *userRecord {
	return &userRecord{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		OwnerID:      u.OwnerID,
		PropertyID:   u.PropertyID,
		CreatedAt:    u.CreatedAt,
	}
}

func (r *userRecord) toUser() *identity.User {
	return &identity.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		OwnerID:      r.OwnerID,
		PropertyID:   r.PropertyID,
		CreatedAt:    r.CreatedAt,
	}
}

// UserStore implementation

func (d *Driver) Create(ctx context.Context, user *identity.User) error {
	var count int64
	if err := d.db.WithContext(ctx).
		Model(&userRecord{}).
		Where("email = ?", user.Email).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return identity.ErrUserExists
	}

	return d.db.WithContext(ctx).Create(toUserRecord(user)).Error
}

func (d *Driver) Get(ctx context.Context, id string) (*identity.User, error) {
	var rec userRecord
	result := d.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, result.Error
	}
	return rec.toUser(), nil
}

func (d *Driver) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	var rec userRecord
	result := d.db.WithContext(ctx).First(&rec, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, result.Error
	}
	return rec.toUser(), nil
}

func (d *Driver) ListTenants(ctx context.Context, ownerID string) ([]*identity.User, error) {
	var recs []*userRecord
	result := d.db.WithContext(ctx).
		Where("role = ? AND owner_id = ?", identity.RoleTenant, ownerID).
		Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}

	users := make([]*identity.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toUser())
	}
	return users, nil
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&userRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// Ensure Driver implements the combined store interface.
var _ store.Store = (*Driver)(nil)
