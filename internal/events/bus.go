package events

import "sync"

// Bus fans transaction-lifecycle and risk notifications out to in-process
// listeners. Delivery is best-effort: a subscriber that falls behind its
// buffer loses messages rather than stalling the publisher, so the dispatch
// path never blocks on an observer.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Event][]chan any
}

// NewBus creates a bus with no listeners.
func NewBus() *Bus {
	return &Bus{listeners: make(map[Event][]chan any)}
}

// Subscribe registers a buffered listener for one topic. The returned
// function detaches the listener and closes its channel; call it exactly
// once.
func (b *Bus) Subscribe(topic Event, buffer int) (<-chan any, func()) {
	ch := make(chan any, buffer)

	b.mu.Lock()
	b.listeners[topic] = append(b.listeners[topic], ch)
	b.mu.Unlock()

	return ch, func() { b.detach(topic, ch) }
}

// Publish delivers payload to every listener of the topic. Full buffers are
// skipped, never waited on.
func (b *Bus) Publish(topic Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.listeners[topic] {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (b *Bus) detach(topic Event, ch chan any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.listeners[topic]
	for i, c := range subs {
		if c == ch {
			b.listeners[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}
