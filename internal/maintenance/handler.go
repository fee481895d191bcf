package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/liveinsync/rentd/internal/api"
	"github.com/liveinsync/rentd/internal/appctx"
	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/ratelimit"
	"github.com/liveinsync/rentd/internal/store"
)

// Notifier receives accepted lifecycle changes for real-time fan-out.
// Implementations must be non-blocking; delivery is best-effort and its
// outcome never reaches the REST caller.
type Notifier interface {
	// RequestCreated is invoked after a request is persisted as pending.
	RequestCreated(req *store.MaintenanceRequest)

	// StatusChanged is invoked after any accepted transition or notes
	// update. actorRole is the role that performed the action and decides
	// which side is notified.
	StatusChanged(req *store.MaintenanceRequest, actorRole string)
}

// Handler handles the maintenance request REST endpoints.
type Handler struct {
	engine   *Engine
	notifier Notifier
	limiter  *ratelimit.Limiter // nil disables the create quota
}

// NewHandler creates a new maintenance handler.
// notifier may be nil (no real-time fan-out, used in tests).
func NewHandler(engine *Engine, notifier Notifier, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		engine:   engine,
		notifier: notifier,
		limiter:  limiter,
	}
}

// CreateRequestBody is the request body for POST /api/maintenance-requests.
type CreateRequestBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// HandleCreate handles POST /api/maintenance-requests (tenant only).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	actor, ok := appctx.ActorFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	if h.limiter != nil {
		result, err := h.limiter.Allow(r.Context(), actor.ID)
		if err == nil && !result.Allowed {
			api.WriteError(w, http.StatusTooManyRequests, api.ReasonRateLimited, "too many requests, slow down")
			return
		}
	}

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request body")
		return
	}

	rec, err := h.engine.Create(r.Context(), actor, CreateInput{
		Title:       body.Title,
		Description: body.Description,
		Priority:    store.Priority(body.Priority),
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	log.Info("maintenance request created",
		"request_id", rec.ID,
		"tenant_id", rec.TenantID,
		"priority", rec.Priority,
	)

	if h.notifier != nil {
		h.notifier.RequestCreated(rec)
	}

	api.WriteJSON(w, http.StatusCreated, rec)
}

// HandleListOwner handles GET /api/maintenance-requests/owner.
func (h *Handler) HandleListOwner(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, identity.RoleOwner)
}

// HandleListTenant handles GET /api/maintenance-requests/tenant.
func (h *Handler) HandleListTenant(w http.ResponseWriter, r *http.Request) {
	h.handleList(w, r, identity.RoleTenant)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, role string) {
	actor, ok := appctx.ActorFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}
	if actor.Role != role {
		api.WriteForbidden(w, "wrong role for this listing")
		return
	}

	recs, err := h.engine.ListForActor(r.Context(), actor)
	if err != nil {
		api.WriteInternalError(w, "failed to list requests")
		return
	}
	if recs == nil {
		recs = []*store.MaintenanceRequest{}
	}
	api.WriteJSON(w, http.StatusOK, recs)
}

// HandleGet handles GET /api/maintenance-requests/{requestId}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := appctx.ActorFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	rec, err := h.engine.Get(r.Context(), actor, chi.URLParam(r, "requestId"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// UpdateRequestBody is the request body for PATCH /api/maintenance-requests/{requestId}.
type UpdateRequestBody struct {
	Status     string  `json:"status"`
	OwnerNotes *string `json:"ownerNotes"`
}

// HandleUpdate handles PATCH /api/maintenance-requests/{requestId} (owner only).
// A status of in_progress, completed or closed drives the corresponding
// transition; a body with only ownerNotes updates notes in place.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := appctx.ActorFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	var body UpdateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request body")
		return
	}

	id := chi.URLParam(r, "requestId")
	notes := ""
	if body.OwnerNotes != nil {
		notes = *body.OwnerNotes
	}

	var (
		rec *store.MaintenanceRequest
		err error
	)
	switch store.Status(body.Status) {
	case "":
		if body.OwnerNotes == nil {
			api.WriteBadRequest(w, api.ReasonMissingField, "status or ownerNotes is required")
			return
		}
		rec, err = h.engine.UpdateNotes(r.Context(), actor, id, notes)
	case store.StatusInProgress:
		rec, err = h.engine.StartWork(r.Context(), actor, id)
		if err == nil && body.OwnerNotes != nil {
			rec, err = h.engine.UpdateNotes(r.Context(), actor, id, notes)
		}
	case store.StatusCompleted:
		rec, err = h.engine.MarkCompleted(r.Context(), actor, id, notes)
	case store.StatusClosed:
		rec, err = h.engine.Close(r.Context(), actor, id)
	default:
		api.WriteBadRequest(w, api.ReasonInvalidField, "unsupported status value")
		return
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if h.notifier != nil {
		h.notifier.StatusChanged(rec, actor.Role)
	}

	api.WriteJSON(w, http.StatusOK, rec)
}

// HandleApprove handles POST /api/maintenance-requests/{requestId}/approve (tenant only).
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleTenantAction(w, r, h.engine.Approve)
}

// HandleReject handles POST /api/maintenance-requests/{requestId}/reject (tenant only).
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.handleTenantAction(w, r, h.engine.Reject)
}

// HandleClose handles POST /api/maintenance-requests/{requestId}/close (owner only).
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	actor, ok := appctx.ActorFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	rec, err := h.engine.Close(r.Context(), actor, chi.URLParam(r, "requestId"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if h.notifier != nil {
		h.notifier.StatusChanged(rec, actor.Role)
	}

	api.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleTenantAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, actor *identity.User, id string) (*store.MaintenanceRequest, error)) {
	actor, ok := appctx.ActorFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
		return
	}

	rec, err := action(r.Context(), actor, chi.URLParam(r, "requestId"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if h.notifier != nil {
		h.notifier.StatusChanged(rec, actor.Role)
	}

	api.WriteJSON(w, http.StatusOK, rec)
}

// writeEngineError maps engine errors to standardized HTTP responses.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		api.WriteForbidden(w, "you do not have permission to act on this request")
	case errors.Is(err, ErrInvalidTransition):
		api.WriteError(w, http.StatusConflict, api.ReasonInvalidTransition, "the request is not in a state that allows this action")
	case errors.Is(err, ErrValidation):
		api.WriteBadRequest(w, api.ReasonInvalidField, err.Error())
	case errors.Is(err, store.ErrNotFound):
		api.WriteNotFound(w, "maintenance request not found")
	default:
		api.WriteInternalError(w, "internal error")
	}
}
