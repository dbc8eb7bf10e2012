package notify

import (
	"testing"
	"time"
)

func TestPublishOrderWithinTopic(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe("bookings:u1")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		hub.Publish("bookings:u1", "bookingUpdate", i)
	}

	for want := 0; want < 5; want++ {
		select {
		case ev := <-sub.C():
			if ev.Payload.(int) != want {
				t.Fatalf("expected event %d, got %v", want, ev.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func TestLateSubscriberMissesEvents(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	hub.Publish("bookings:u1", "bookingUpdate", "gone")

	sub := hub.Subscribe("bookings:u1")
	defer sub.Close()

	select {
	case ev := <-sub.C():
		t.Fatalf("late subscriber should receive nothing, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe("capacity:red:1")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		// Publish well past the buffer without any reader.
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish("capacity:red:1", "capacityUpdate", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}

	received := 0
	for {
		select {
		case <-sub.C():
			received++
		default:
			if received != subscriberBuffer {
				t.Fatalf("expected exactly %d buffered events, got %d", subscriberBuffer, received)
			}
			return
		}
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	u1 := hub.Subscribe(UserTopic("u1"))
	defer u1.Close()
	u2 := hub.Subscribe(UserTopic("u2"))
	defer u2.Close()

	hub.Publish(UserTopic("u1"), "bookingUpdate", "for-u1")

	select {
	case ev := <-u1.C():
		if ev.Payload != "for-u1" {
			t.Fatalf("unexpected payload %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("u1 did not receive its event")
	}

	select {
	case ev := <-u2.C():
		t.Fatalf("u2 should not see u1 events, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe("t")
	if hub.SubscriberCount("t") != 1 {
		t.Fatalf("expected one subscriber")
	}
	sub.Close()
	if hub.SubscriberCount("t") != 0 {
		t.Fatalf("expected subscriber removed after close")
	}

	// Publishing after close must not panic on the closed channel.
	hub.Publish("t", "x", nil)
}

// Hub teardown and a subscriber disconnect arriving at the same instant must
// both return; an event-stream handler closes its subscription on client
// disconnect while shutdown closes the hub.
func TestHubCloseRacesSubscriptionClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		hub := NewHub()
		sub := hub.Subscribe("t")

		done := make(chan struct{}, 2)
		go func() {
			hub.Close()
			done <- struct{}{}
		}()
		go func() {
			sub.Close()
			done <- struct{}{}
		}()

		for j := 0; j < 2; j++ {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("attempt %d: hub close and subscription close blocked each other", i)
			}
		}

		if _, open := <-sub.C(); open {
			t.Fatalf("attempt %d: channel left open", i)
		}
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("t")
	hub.Close()

	if _, open := <-sub.C(); open {
		t.Fatalf("expected channel closed after hub close")
	}

	// Subscribing to a closed hub yields a drained subscription.
	late := hub.Subscribe("t")
	if _, open := <-late.C(); open {
		t.Fatalf("expected closed channel from closed hub")
	}
}
