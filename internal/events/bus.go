// Package events implements the process-local event bus. Dispatch is
// synchronous inside the emitting critical section, so handlers must not
// block.
package events

import (
	"sync"
	"time"
)

// EventType defines the type of event
type EventType string

// Event types
const (
	EventKeySet    EventType = "key.set"
	EventKeyGet    EventType = "key.get"
	EventKeyDelete EventType = "key.delete"
	EventKeyExpire EventType = "key.expire"
	EventKeyEvict  EventType = "key.evict"

	EventInstanceCreate EventType = "instance.create"
	EventInstanceDelete EventType = "instance.delete"

	EventNodeJoin  EventType = "node.join"
	EventNodeLeave EventType = "node.leave"

	EventAttestationRefresh EventType = "attestation.refresh"
)

// Event carries the context of a single occurrence.
type Event struct {
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Namespace  string    `json:"namespace,omitempty"`
	Key        string    `json:"key,omitempty"`
	NodeID     string    `json:"node_id,omitempty"`
	InstanceID string    `json:"instance_id,omitempty"`
}

// Handler is a function that handles an event
type Handler func(event Event)

// Bus distributes events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Emit delivers the event to every matching handler, synchronously and in
// registration order.
func (b *Bus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.mu.RLock()
	matched := b.handlers[event.Type]
	all := b.all
	b.mu.RUnlock()

	for _, h := range matched {
		h(event)
	}
	for _, h := range all {
		h(event)
	}
}

// Close drops all handlers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
	b.all = nil
}
