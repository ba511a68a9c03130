// Package events provides event management functionality.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	BatchSubmitted    EventType = "BATCH_SUBMITTED"
	BatchCompleted    EventType = "BATCH_COMPLETED"
	BatchCancelled    EventType = "BATCH_CANCELLED"
	SecurityCompleted EventType = "SECURITY_COMPLETED"
	SecurityAdded     EventType = "SECURITY_ADDED"
	ResearchProgress  EventType = "RESEARCH_PROGRESS"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// Event represents a system event with typed data
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler is a function that handles an event
type Handler func(event *Event)

// Bus is an in-process publish/subscribe event bus.
// Handlers are invoked synchronously on the emitting goroutine, so they must
// not block; anything slow should hand off to its own goroutine or channel.
type Bus struct {
	handlers map[EventType][]Handler
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit publishes an event to all handlers registered for its type
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
