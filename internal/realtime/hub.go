package realtime

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/liveinsync/rentd/internal/identity"
	"github.com/liveinsync/rentd/internal/store"
)

// Hub ties the pieces together: lifecycle changes arrive from the REST
// layer, go through the bus, are routed against the registry, and are
// pushed out through the transport. Delivery is fire-and-forget; a push
// failure is logged and isolated to its recipient.
type Hub struct {
	bus       *Bus
	registry  *Registry
	transport *Transport
	logger    *slog.Logger

	cancel CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub over the given bus, registry and transport.
func NewHub(bus *Bus, registry *Registry, transport *Transport, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		bus:       bus,
		registry:  registry,
		transport: transport,
		logger:    logger,
	}
}

// Start subscribes to the bus and begins dispatching events.
func (h *Hub) Start() {
	events, cancel := h.bus.Subscribe()
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for ev := range events {
			h.dispatch(ev)
		}
	}()
}

// Stop unsubscribes and waits for in-flight dispatches to finish.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

// dispatch pushes one event to every computed recipient. Each recipient
// gets the full updated record plus its targeted notification; one failed
// push never aborts the rest.
func (h *Hub) dispatch(ev Event) {
	for _, connID := range Participants(h.registry, ev.Request) {
		h.push(connID, Frame{Event: FrameMaintenanceUpdate, Data: ev.Request})
	}

	for _, d := range Route(h.registry, ev) {
		h.push(d.ConnID, Frame{Event: FrameMaintenanceNotification, Data: d.Notification})
	}
}

func (h *Hub) push(connID string, frame Frame) {
	if err := h.transport.Push(connID, frame); err != nil {
		// Best-effort: the connection may have closed between the
		// registry snapshot and the write.
		if !errors.Is(err, ErrConnNotFound) {
			h.logger.Warn("push failed",
				"conn_id", connID,
				"event", frame.Event,
				"error", err,
			)
		}
	}
}

// RequestCreated implements the maintenance notifier contract: publishes
// the creation event for fan-out to the owner and the filing tenant.
func (h *Hub) RequestCreated(req *store.MaintenanceRequest) {
	h.bus.Publish(Event{
		Kind:      EventRequestCreated,
		ActorRole: identity.RoleTenant,
		Request:   req,
	})
}

// StatusChanged implements the maintenance notifier contract: publishes a
// transition event; the actor's role decides which party is notified.
func (h *Hub) StatusChanged(req *store.MaintenanceRequest, actorRole string) {
	h.bus.Publish(Event{
		Kind:      EventStatusChanged,
		ActorRole: actorRole,
		Request:   req,
	})
}
