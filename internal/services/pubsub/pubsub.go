// Package pubsub provides a simple publish-subscribe mechanism for state
// change notifications.
package pubsub

import (
	"slices"
	"strconv"
	"sync"
)

// Topic represents a subscription topic.
type Topic string

const (
	TopicStateChanged Topic = "STATE_CHANGED"
	TopicDMXOutput    Topic = "DMX_OUTPUT_CHANGED"
	TopicMIDIEvent    Topic = "MIDI_EVENT"
)

// Subscriber represents a subscription channel.
type Subscriber struct {
	ID      string
	Topic   Topic
	Filters []string // Optional filter values (e.g., state slice names)
	Channel chan interface{}
}

// Matches reports whether a message published with the given filters should
// reach this subscriber.
func (s *Subscriber) Matches(filters []string) bool {
	if len(s.Filters) == 0 || len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if slices.Contains(s.Filters, f) {
			return true
		}
	}
	return false
}

// PubSub manages subscriptions and message distribution.
type PubSub struct {
	mu          sync.RWMutex
	subscribers map[Topic][]*Subscriber
	nextID      int
}

// New creates a new PubSub instance.
func New() *PubSub {
	return &PubSub{
		subscribers: make(map[Topic][]*Subscriber),
	}
}

// Subscribe creates a new subscription for a topic.
func (ps *PubSub) Subscribe(topic Topic, bufferSize int, filters ...string) *Subscriber {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.nextID++
	sub := &Subscriber{
		ID:      strconv.Itoa(ps.nextID),
		Topic:   topic,
		Filters: filters,
		Channel: make(chan interface{}, bufferSize),
	}

	ps.subscribers[topic] = append(ps.subscribers[topic], sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (ps *PubSub) Unsubscribe(sub *Subscriber) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	subs := ps.subscribers[sub.Topic]
	for i, s := range subs {
		if s.ID == sub.ID {
			close(s.Channel)
			ps.subscribers[sub.Topic] = slices.Delete(slices.Clone(subs), i, i+1)
			return
		}
	}
}

// Publish sends a message to all subscribers of a topic.
// Subscribers with filters only receive messages published with at least one
// matching filter; messages published without filters reach everyone.
func (ps *PubSub) Publish(topic Topic, message interface{}, filters ...string) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, sub := range ps.subscribers[topic] {
		if !sub.Matches(filters) {
			continue
		}
		select {
		case sub.Channel <- message:
			// Message sent
		default:
			// Channel full, skip (non-blocking)
		}
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (ps *PubSub) SubscriberCount(topic Topic) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}
