// Package service contains the supporting services around the layer engine:
// the event bus that carries status and visibility notifications, and the
// category style store.
package service

import "sync"

// Event is a state change published to UI subscribers.
type Event struct {
	Resource string `json:"resource"`          // "layers" or "data"
	Action   string `json:"action"`            // e.g. "attached", "loaded", "failed"
	ID       string `json:"id,omitempty"`      // category, snapshot query or record id
	Message  string `json:"message,omitempty"` // human-readable status
}

// EventBus is a simple fan-out pub/sub for engine events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
