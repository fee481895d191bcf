package realtime

import (
	"sync"

	"github.com/liveinsync/rentd/internal/store"
)

// EventKind identifies what happened to a maintenance request.
type EventKind string

const (
	// EventRequestCreated fires once when a tenant files a new request.
	EventRequestCreated EventKind = "request_created"

	// EventStatusChanged fires on every accepted transition or notes update.
	EventStatusChanged EventKind = "status_changed"
)

// Event is a domain event published after a lifecycle change persisted.
type Event struct {
	Kind      EventKind
	ActorRole string // role that performed the action (owner or tenant)
	Request   *store.MaintenanceRequest
}

// CancelFunc removes a subscription. Safe to call more than once.
type CancelFunc func()

// Bus is a typed publish/subscribe channel for lifecycle events.
// Publishing never blocks: a subscriber that cannot keep up loses events
// rather than stalling the publisher. There is no queueing or replay.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
	}
}

// subscriberBuffer bounds how many undelivered events a subscriber may hold.
const subscriberBuffer = 64

// Subscribe registers a new subscriber and returns its event channel with
// a cancellation handle. The channel is closed on cancel or bus close.
// Cancel is idempotent, so repeated (re)connect teardown cannot leak or
// double-close.
func (b *Bus) Subscribe() (<-chan Event, CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every current subscriber, dropping it for
// subscribers whose buffer is full.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// slow subscriber, event dropped
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
