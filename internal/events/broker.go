// Path: internal/events/broker.go
package events

import "sync"

// Event is a message passed through the broker, e.g. a refresh lifecycle
// notification with its cycle summary as payload.
type Event struct {
	Topic string
	Data  any
}

// Broker implements a simple in-memory pub/sub system. The refresh engine
// publishes lifecycle events and the delivery layer streams them to clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe creates a new subscription to a topic.
// It returns a read-only channel where events for that topic will be sent.
func (b *Broker) Subscribe(topic string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 4) // Buffered so a slow consumer cannot stall a publish
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Callers with
// request-scoped subscriptions must unsubscribe on disconnect or the broker
// accumulates dead channels.
func (b *Broker) Unsubscribe(topic string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := b.subscribers[topic]
	for i, c := range subscribers {
		if c == ch {
			b.subscribers[topic] = append(subscribers[:i], subscribers[i+1:]...)
			close(c)
			return
		}
	}
}

// Publish sends an event to all subscribers of a topic. Subscribers that are
// not ready lose the event; a dropped lifecycle notification is preferable to
// blocking the refresh cycle.
func (b *Broker) Publish(topic string, data any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Topic: topic, Data: data}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}
