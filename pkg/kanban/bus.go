package kanban

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// EventHandler receives the raw payload of one published event.
type EventHandler func(data json.RawMessage)

type subscription struct {
	event   string
	handler EventHandler
}

// Bus is a typed publish/subscribe hub keyed by event name. Dispatch is
// synchronous and in subscription order, so a handler observes every effect
// of the handlers registered before it. A panicking handler is recovered and
// logged; the remaining handlers still run.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*subscription
	log  *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subs: make(map[string][]*subscription),
		log:  log,
	}
}

// Subscribe registers a handler for one event name and returns a function
// that removes exactly this registration. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(event string, handler EventHandler) func() {
	sub := &subscription{event: event, handler: handler}
	b.mu.Lock()
	b.subs[event] = append(b.subs[event], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			handlers := b.subs[event]
			for i, s := range handlers {
				if s == sub {
					b.subs[event] = append(handlers[:i:i], handlers[i+1:]...)
					break
				}
			}
			if len(b.subs[event]) == 0 {
				delete(b.subs, event)
			}
		})
	}
}

// Publish invokes every handler registered for the event, in order, on the
// caller's goroutine.
func (b *Bus) Publish(event string, data json.RawMessage) {
	b.mu.Lock()
	handlers := make([]*subscription, len(b.subs[event]))
	copy(handlers, b.subs[event])
	b.mu.Unlock()

	for _, sub := range handlers {
		b.dispatch(event, sub, data)
	}
}

func (b *Bus) dispatch(event string, sub *subscription, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	sub.handler(data)
}
