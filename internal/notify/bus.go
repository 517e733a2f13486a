// Package notify carries builder events between the components that
// mutate content and the listeners that react to it (autosave, the
// editor UI feed). Components talk through the typed bus instead of
// depending on each other directly.
package notify

import (
	"io"
	"log/slog"
	"sync"
)

// EventType tags the kind of builder event being announced.
type EventType string

const (
	// ContentChanged fires on every tree or page-settings mutation.
	ContentChanged EventType = "content-changed"
	// SaveCompleted fires after a successful persistence round-trip.
	SaveCompleted EventType = "save-completed"
	// SaveFailed fires when persistence rejects a snapshot.
	SaveFailed EventType = "save-failed"
	// DocumentReloaded fires when a document changed on disk outside
	// the editing session.
	DocumentReloaded EventType = "document-reloaded"
)

// Event is a single announcement on the bus.
type Event struct {
	Type      EventType `json:"type"`
	WebsiteID string    `json:"websiteId"`
	PageID    string    `json:"pageId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

// Bus is a session-scoped publish/subscribe channel. Dispatch is
// synchronous: handlers run in publication order on the publishing
// goroutine, matching the editor's single-threaded mutation model.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
	all         []Handler
	logger      *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{
		subscribers: make(map[EventType][]Handler),
		logger:      logger,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to all matching handlers. A panicking
// handler is logged and skipped; it never takes down the publisher.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type])+len(b.all))
	handlers = append(handlers, b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, event)
	}
}

func (b *Bus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic in event handler", "eventType", event.Type, "websiteID", event.WebsiteID, "panic", r)
		}
	}()
	h(event)
}
