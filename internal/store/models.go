package store

import "time"

// Status is the lifecycle state of a maintenance request.
type Status string

// Request statuses. Closed is terminal.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusClosed     Status = "closed"
)

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusClosed:
		return true
	}
	return false
}

// Priority is the urgency of a maintenance request.
type Priority string

// Request priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// MaintenanceRequest is the durable record of a tenant's maintenance request.
// Status and ApprovedByTenant are written only by the lifecycle engine.
type MaintenanceRequest struct {
	ID          string   `json:"id" gorm:"primaryKey"`
	TenantID    string   `json:"tenantId" gorm:"index"`
	OwnerID     string   `json:"ownerId" gorm:"index"`
	PropertyID  string   `json:"propertyId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status" gorm:"index"`

	// ApprovedByTenant is meaningful only while Status is completed: it
	// records that the tenant has signed off on the finished work.
	ApprovedByTenant bool `json:"isApprovedByTenant"`

	OwnerNotes string `json:"ownerNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the request.
func (m *MaintenanceRequest) Clone() *MaintenanceRequest {
	copy := *m
	return &copy
}

// IsTerminal reports whether the request can no longer be mutated.
func (m *MaintenanceRequest) IsTerminal() bool {
	return m.Status == StatusClosed
}
