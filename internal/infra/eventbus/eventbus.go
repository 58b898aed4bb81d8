// Package eventbus is the in-memory pub/sub seam between the execution
// hook path and its consumers. Publish never blocks: each subscriber
// gets a buffered channel and events are dropped when a buffer is full,
// so a stalled consumer costs audit records, never request latency.
package eventbus

import "sync"

// Event is one published message.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is the publish/subscribe surface consumers depend on.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

const subscriberBuffer = 100

// Bus is the in-process EventBus. Safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]chan Event)}
}

// Subscribe adds a subscriber to topic and returns its channel. The
// caller owns the consumption loop; an unread channel fills up and
// starts dropping, it never blocks publishers.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers an event to every subscriber of topic, skipping any
// whose buffer is full.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
