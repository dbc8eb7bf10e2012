package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AkZcH/metro-flow-control-system/common/kafka"
	"github.com/AkZcH/metro-flow-control-system/common/logger"
	"github.com/AkZcH/metro-flow-control-system/internal/ledger"
)

const (
	BookingEventsTopic  = "booking-events"
	CapacityEventsTopic = "capacity-events"

	kafkaPublishTimeout = 5 * time.Second
)

// Notifier fans events out to in-process subscribers and, when a producer is
// configured, mirrors them to Kafka for external consumers. Both paths are
// fire-and-forget: failures are logged, never surfaced to the booking path.
type Notifier struct {
	hub      *Hub
	producer kafka.Producer
}

func NewNotifier(hub *Hub, producer kafka.Producer) *Notifier {
	return &Notifier{hub: hub, producer: producer}
}

func (n *Notifier) Hub() *Hub {
	return n.hub
}

func (n *Notifier) BookingStatus(userID string, ev BookingEvent) {
	n.hub.Publish(UserTopic(userID), "bookingUpdate", ev)
	n.mirror(BookingEventsTopic, userID, ev)
}

func (n *Notifier) CapacityChange(slot ledger.Slot) {
	ev := CapacityEvent{
		Line:      slot.Line,
		Departure: slot.Departure,
		Available: slot.Available,
		Total:     slot.Total,
		Timestamp: time.Now(),
	}
	n.hub.Publish(CapacityTopic(slot.Line, slot.Departure), "capacityUpdate", ev)
	n.mirror(CapacityEventsTopic, slot.Line, ev)
}

func (n *Notifier) mirror(topic, key string, payload interface{}) {
	if n.producer == nil {
		return
	}
	value, err := json.Marshal(payload)
	if err != nil {
		logger.Error("marshal %s event: %v", topic, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), kafkaPublishTimeout)
		defer cancel()
		if err := n.producer.Publish(ctx, topic, key, value); err != nil {
			logger.Error("publish %s event to kafka: %v", topic, err)
		}
	}()
}
