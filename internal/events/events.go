// Package events provides the in-process event bus used to fan state
// changes out to background jobs and connected stream clients.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a category of event
type EventType string

const (
	// PriceUpdated fires after a price refresh cycle completes
	PriceUpdated EventType = "price_updated"
	// LotAdded fires after a purchase appends a lot
	LotAdded EventType = "lot_added"
	// LotSold fires after a FIFO liquidation completes
	LotSold EventType = "lot_sold"
	// LotUpdated fires after a manual lot mutation
	LotUpdated EventType = "lot_updated"
	// BalanceChanged fires after a deposit, withdrawal or reset
	BalanceChanged EventType = "balance_changed"
	// WatchlistChanged fires after watchlist add/remove
	WatchlistChanged EventType = "watchlist_changed"
	// BackupCompleted fires after a backup upload finishes
	BackupCompleted EventType = "backup_completed"
)

// Event is a single published occurrence with its typed payload
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Handler processes a published event. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(event *Event)

// subscription pairs a handler with the id used to remove it
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a minimal publish/subscribe hub keyed by event type
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType][]subscription
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type. The returned function
// removes the handler; transient subscribers such as stream connections
// must call it on teardown.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[eventType]
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to all handlers registered for its type
func (b *Bus) Publish(eventType EventType, data interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	subs := b.handlers[eventType]
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Int("handlers", len(subs)).
		Msg("Publishing event")

	for _, sub := range subs {
		sub.handler(event)
	}
}
