package event

import (
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id      string
	topic   string
	matcher glob.Glob // non-nil for pattern subscriptions
	handler Handler
}

// Bus is a simple synchronous pub-sub event bus.
// It allows components to communicate without direct dependencies.
//
// Topics may be exact event types ("agent.spawned") or glob patterns
// ("swarm.*", "*"). Pattern subscriptions are matched against the event
// type of every published event.
type Bus struct {
	mu       sync.RWMutex
	exact    map[string][]subscription // eventType -> subscriptions
	patterns []subscription            // glob-pattern subscriptions, registration order
	nextID   atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		exact: make(map[string][]subscription),
	}
}

// Subscribe registers a handler for a topic. The topic is either an exact
// event type or a glob pattern ("swarm.*"); a topic containing glob
// metacharacters that fails to compile is treated as an exact match.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(topic string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.generateID()
	sub := subscription{
		id:      id,
		topic:   topic,
		handler: handler,
	}

	if strings.ContainsAny(topic, "*?[{") {
		if g, err := glob.Compile(topic); err == nil {
			sub.matcher = g
			b.patterns = append(b.patterns, sub)
			return id
		}
	}

	b.exact[topic] = append(b.exact[topic], sub)
	return id
}

// SubscribeAll registers a handler for all event types.
// The handler will be called for every published event.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.exact {
		for i, sub := range subs {
			if sub.id == id {
				// Remove subscription by re-slicing to exclude index i
				b.exact[topic] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}

	for i, sub := range b.patterns {
		if sub.id == id {
			b.patterns = append(b.patterns[:i], b.patterns[i+1:]...)
			return true
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers.
// Exact handlers (subscribed to this event type) are called first,
// followed by pattern handlers whose glob matches the event type.
// Within each group, handlers are called in registration order.
// If a handler panics, the panic is logged, recovered, and publishing
// continues to remaining handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	eventType := event.EventType()

	exactSubs := make([]subscription, len(b.exact[eventType]))
	copy(exactSubs, b.exact[eventType])

	var patternSubs []subscription
	for _, sub := range b.patterns {
		if sub.matcher.Match(eventType) {
			patternSubs = append(patternSubs, sub)
		}
	}

	b.mu.RUnlock()

	// Dispatch to exact handlers
	for _, sub := range exactSubs {
		b.safeCall(sub.handler, event)
	}

	// Dispatch to matching pattern handlers
	for _, sub := range patternSubs {
		b.safeCall(sub.handler, event)
	}
}

// safeCall invokes a handler and recovers from any panics.
// Panics are logged with stack traces to aid debugging while ensuring
// one misbehaving handler cannot block event delivery to other handlers.
func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for event %s: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// generateID creates a unique subscription ID.
func (b *Bus) generateID() string {
	id := b.nextID.Add(1)
	return string(rune('a'+id%26)) + string(rune('0'+id/26%10)) + string(rune('a'+id/260%26))
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exact = make(map[string][]subscription)
	b.patterns = nil
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.patterns)
	for _, subs := range b.exact {
		count += len(subs)
	}
	return count
}
