package events

import (
	"fmt"
	"sync"

	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Handler receives every event published on a bus
type Handler func(Event)

// Bus is a synchronous in-process event dispatcher.
//
// Publish delivers the event to all handlers on the calling goroutine. Events
// published while a dispatch is in progress (from a handler or another
// goroutine) are queued and delivered by the dispatching goroutine in publish
// order, so every handler observes the same global ordering.
type Bus struct {
	logger *logger.Logger

	mu       sync.RWMutex
	handlers []Handler

	dispatchMu  sync.Mutex
	queue       []Event
	dispatching bool
}

// NewBus creates a new event bus
func NewBus(log *logger.Logger) *Bus {
	return &Bus{logger: log.Named("events")}
}

// Subscribe registers a handler for all events
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// On registers a handler that only receives events of type T
func On[T Event](b *Bus, fn func(T)) {
	b.Subscribe(func(e Event) {
		if typed, ok := e.(T); ok {
			fn(typed)
		}
	})
}

// Publish dispatches e to all subscribers
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}

	b.dispatchMu.Lock()
	b.queue = append(b.queue, e)
	if b.dispatching {
		b.dispatchMu.Unlock()
		return
	}
	b.dispatching = true
	b.dispatchMu.Unlock()

	for {
		b.dispatchMu.Lock()
		if len(b.queue) == 0 {
			b.dispatching = false
			b.dispatchMu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.dispatchMu.Unlock()

		b.deliver(next)
	}
}

func (b *Bus) deliver(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(h, e)
	}
}

func (b *Bus) safeCall(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				logger.String("event", e.eventName()),
				logger.String("panic", fmt.Sprint(r)))
		}
	}()
	h(e)
}
