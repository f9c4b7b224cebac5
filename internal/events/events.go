package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventUpdateStatus    = "update_status"
	EventWindowCommand   = "window_command"
	EventTourCreated     = "tour_created"
	EventTourUpdated     = "tour_updated"
	EventTourDeleted     = "tour_deleted"
	EventPropertyCreated = "property_created"
	EventPropertyUpdated = "property_updated"
	EventPropertyDeleted = "property_deleted"
	EventToursCleaned    = "tours_cleaned"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// RecordChangedPayload identifies a changed tour or property. Record
// contents are not included; subscribers refetch.
type RecordChangedPayload struct {
	ID string `json:"id"`
}

// UpdateStatusPayload reports update check progress. URL and Notes come
// from the release feed and are set only when an update is available.
type UpdateStatusPayload struct {
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type WindowCommandPayload struct {
	Command string `json:"command"`
}

type ToursCleanedPayload struct {
	Removed int64 `json:"removed"`
}

// Event is what subscribers and WebSocket clients receive.
type Event struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

type subscription struct {
	id      int64
	handler EventHandler
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscription
	nextSub     int64
	nextEvent   int64
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]subscription)}
}

// Subscribe registers a handler for eventType (or AllEvents) and returns a
// function that removes it.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(eventType, id) })
	}
}

func (b *EventBus) unsubscribe(eventType string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[eventType]) == 0 {
		delete(b.subscribers, eventType)
	}
}

// Publish notifies subscribers of the event type, then wildcard subscribers.
func (b *EventBus) Publish(event *Event) {
	b.mu.Lock()
	b.nextEvent++
	event.ID = b.nextEvent
	subs := append([]subscription(nil), b.subscribers[event.Type]...)
	subs = append(subs, b.subscribers[AllEvents]...)
	b.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, s := range subs {
		// Handlers run synchronously; caller decides concurrency model.
		_ = s.handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
