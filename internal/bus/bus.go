// Package bus is the typed publish/subscribe surface the session manager
// emits on. Events are concrete payload structs behind the Event
// interface; subscribers receive them on a buffered channel in emission
// order. With no subscribers events are dropped, never buffered, and a
// subscriber that falls behind loses events rather than blocking the
// publisher.
package bus

import (
	"sync"
)

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 64

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given channel depth; depth
// <= 0 uses DefaultBuffer. The cancel func is idempotent and closes the
// channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers e to every current subscriber. Per-subscriber order
// matches publish order; a full subscriber channel drops the event.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber can't keep up; drop rather than block the
			// session manager.
		}
	}
}

// SubscriberCount reports the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel and empties the bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
