package realtime

import (
	"fmt"

	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/store"
)

// Wire frame names pushed to clients.
const (
	// FrameMaintenanceUpdate carries the full updated request record.
	FrameMaintenanceUpdate = "maintenanceUpdate"

	// FrameMaintenanceNotification carries a targeted human-readable notice.
	FrameMaintenanceNotification = "maintenanceNotification"
)

// Notification types carried by maintenanceNotification frames.
const (
	// TypeNewRequest tells an owner a tenant filed a new request.
	TypeNewRequest = "new_request"

	// TypeRequestCreated acknowledges to the tenant that submission succeeded.
	TypeRequestCreated = "request_created"

	// TypeStatusUpdate tells the other party the request moved.
	TypeStatusUpdate = "status_update"
)

// Notification is the payload of a maintenanceNotification frame. The
// full record is always included, never a partial diff, so clients can
// reconcile state without ordering concerns.
type Notification struct {
	Type    string                    `json:"type"`
	Message string                    `json:"message"`
	Request *store.MaintenanceRequest `json:"request"`
}

// Delivery pairs one recipient connection with its notification payload.
type Delivery struct {
	ConnID       string
	Notification Notification
}

// Route computes the deliveries for an event against the registry's
// current snapshot. It is pure: the same snapshot, request, and event
// kind always yield the same recipient set. It holds no state and can be
// exercised without a live transport.
//
// Routing rules:
//   - request_created: all of the owner's connections (the owner must act
//     next) and all of the tenant's connections (submission self-ack).
//   - status_changed by the owner: the tenant's connections.
//   - status_changed by the tenant (approve/reject): the owner's connections.
func Route(reg *Registry, ev Event) []Delivery {
	req := ev.Request
	var out []Delivery

	switch ev.Kind {
	case EventRequestCreated:
		for _, connID := range reg.ConnectionsFor(req.OwnerID) {
			out = append(out, Delivery{
				ConnID: connID,
				Notification: Notification{
					Type:    TypeNewRequest,
					Message: fmt.Sprintf("New maintenance request %q from your tenant", req.Title),
					Request: req,
				},
			})
		}
		for _, connID := range reg.ConnectionsFor(req.TenantID) {
			out = append(out, Delivery{
				ConnID: connID,
				Notification: Notification{
					Type:    TypeRequestCreated,
					Message: fmt.Sprintf("Maintenance request %q has been submitted", req.Title),
					Request: req,
				},
			})
		}

	case EventStatusChanged:
		recipient := req.OwnerID
		if ev.ActorRole == identity.RoleOwner {
			recipient = req.TenantID
		}
		for _, connID := range reg.ConnectionsFor(recipient) {
			out = append(out, Delivery{
				ConnID: connID,
				Notification: Notification{
					Type:    TypeStatusUpdate,
					Message: fmt.Sprintf("Maintenance request %q has been %s", req.Title, req.Status),
					Request: req,
				},
			})
		}
	}

	return out
}

// Participants returns the connection ids of both parties to the request.
// Used for the full-record maintenanceUpdate push.
func Participants(reg *Registry, req *store.MaintenanceRequest) []string {
	ids := reg.ConnectionsFor(req.OwnerID)
	return append(ids, reg.ConnectionsFor(req.TenantID)...)
}
