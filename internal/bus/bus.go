// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types published by the animation core
const (
	// Lifecycle events
	EventTypeLifecycleChanged EventType = "lifecycle.changed"
	EventTypeTierChanged      EventType = "lifecycle.tier_changed"

	// Input events
	EventTypeGesture EventType = "input.gesture"

	// Speech events
	EventTypeWakePhrase     EventType = "speech.wake_phrase"
	EventTypeSpeakingStart  EventType = "speech.speaking_started"
	EventTypeSpeakingStop   EventType = "speech.speaking_stopped"
	EventTypeSpeechRejected EventType = "speech.rejected"

	// Audio events
	EventTypeAudioUnavailable EventType = "audio.unavailable"

	// Bridge events
	EventTypeClientConnected    EventType = "bridge.client_connected"
	EventTypeClientDisconnected EventType = "bridge.client_disconnected"
)

// Event represents a bus event
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeMultiple adds a handler for multiple event types
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

func (b *EventBus) snapshot(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, len(b.handlers[t]))
	copy(handlers, b.handlers[t])
	return handlers
}

// Publish hands the event to every subscriber on its own goroutine so a
// slow subscriber never stalls the frame loop.
func (b *EventBus) Publish(event Event) {
	for _, handler := range b.snapshot(event.Type) {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete
func (b *EventBus) PublishSync(event Event) {
	var wg sync.WaitGroup
	for _, handler := range b.snapshot(event.Type) {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

// HasSubscribers reports whether anything listens for t.
func (b *EventBus) HasSubscribers(t EventType) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t]) > 0
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]Handler)
}
