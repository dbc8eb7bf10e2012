package notify

import (
	"fmt"
	"sync"
	"time"
)

const subscriberBuffer = 16

// Event is one fan-out message. Delivery is at-most-once with no replay: a
// subscriber connecting after publish misses the event permanently.
type Event struct {
	Topic     string      `json:"topic"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// BookingEvent goes to the owning user's topic on every status change.
type BookingEvent struct {
	TicketID  string      `json:"ticket_id"`
	Status    string      `json:"status"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// CapacityEvent announces the new counters of a departure slot.
type CapacityEvent struct {
	Line      string    `json:"line"`
	Departure time.Time `json:"departure"`
	Available int       `json:"available_capacity"`
	Total     int       `json:"total_capacity"`
	Timestamp time.Time `json:"timestamp"`
}

func UserTopic(userID string) string {
	return "bookings:" + userID
}

func CapacityTopic(line string, departure time.Time) string {
	return fmt.Sprintf("capacity:%s:%d", line, departure.Unix())
}

type Subscription struct {
	topic  string
	ch     chan Event
	hub    *Hub
	closed bool // guarded by hub.mu
}

func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close detaches the subscription and closes its channel. The channel is
// closed outside the hub lock; a Hub.Close racing this call never waits on
// the other.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	if s.closed {
		s.hub.mu.Unlock()
		return
	}
	s.closed = true
	s.hub.removeLocked(s)
	s.hub.mu.Unlock()
	close(s.ch)
}

// Hub is the in-process subscriber registry. It is created at service start
// and torn down at shutdown; publishing never blocks, a subscriber that
// cannot keep up loses events instead of stalling the booking path.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string][]*Subscription)}
}

func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan Event, subscriberBuffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		// Closed hub yields an immediately-drained subscription.
		sub.closed = true
		close(sub.ch)
		return sub
	}
	h.subs[topic] = append(h.subs[topic], sub)
	return sub
}

// Publish delivers to every currently-connected subscriber of the topic, in
// publish order per topic.
func (h *Hub) Publish(topic, eventType string, payload interface{}) {
	ev := Event{
		Topic:     topic,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
			// Slow subscriber, drop. Delivery is best-effort.
		}
	}
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// removeLocked drops the subscription from the topic registry. Callers hold
// h.mu.
func (h *Hub) removeLocked(target *Subscription) {
	subs := h.subs[target.topic]
	for i, sub := range subs {
		if sub == target {
			h.subs[target.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[target.topic]) == 0 {
		delete(h.subs, target.topic)
	}
}

// Close tears the hub down. Subsequent publishes are dropped. Channels are
// closed after the registry lock is released; Subscription.Close takes the
// same lock, so neither caller can end up waiting on the other.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var channels []chan Event
	for topic, subs := range h.subs {
		for _, sub := range subs {
			if !sub.closed {
				sub.closed = true
				channels = append(channels, sub.ch)
			}
		}
		delete(h.subs, topic)
	}
	h.mu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}
