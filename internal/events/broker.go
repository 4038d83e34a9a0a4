// Path: internal/events/broker.go
package events

import "sync"

// Topics published by the search service.
const (
	// TopicSearchState carries a service.Snapshot after every controller transition.
	TopicSearchState = "search:state"
	// TopicSessionClosed carries the id of a session that was dropped.
	TopicSessionClosed = "search:session_closed"
)

// Event represents a message passed through the broker.
type Event struct {
	Topic string
	Data  any
}

// Broker implements a simple in-memory pub/sub system.
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
// It returns a read-only channel where events for that topic will be sent,
// and a function that removes the subscription and closes the channel.
func (b *Broker) Subscribe(topic string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 1)
	b.subscribers[topic] = append(b.subscribers[topic], ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(topic, ch) })
	}
}

func (b *Broker) unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, s := range subs {
		if s == ch {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// Publish sends an event to all subscribers of a topic without blocking.
// A subscriber that has not consumed its previous event gets it replaced,
// so slow readers always see the latest state.
func (b *Broker) Publish(topic string, data any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Topic: topic, Data: data}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- event:
			continue
		default:
		}
		// Drop the stale event and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}
