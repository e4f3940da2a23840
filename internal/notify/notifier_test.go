package notify

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSubscribeReceivesEvents(t *testing.T) {
	n := NewNotifier(quietLogger())
	sub := n.Subscribe()
	defer sub.Unsubscribe()

	n.Publish(Event{Kind: OrderCreated, OrderID: 7})

	select {
	case ev := <-sub.C:
		if ev.Kind != OrderCreated || ev.OrderID != 7 {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("event timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	n := NewNotifier(quietLogger())

	a := n.Subscribe()
	b := n.Subscribe()
	if n.SubscriberCount() != 2 {
		t.Fatalf("subscribers = %d, want 2", n.SubscriberCount())
	}

	a.Unsubscribe()
	a.Unsubscribe() // safe to repeat
	if n.SubscriberCount() != 1 {
		t.Fatalf("subscribers after unsubscribe = %d, want 1", n.SubscriberCount())
	}

	n.Publish(Event{Kind: OrderDeleted, OrderID: 3})

	// a's channel is closed, b still receives.
	if _, open := <-a.C; open {
		t.Error("unsubscribed channel still open")
	}
	select {
	case ev := <-b.C:
		if ev.OrderID != 3 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber got nothing")
	}
	b.Unsubscribe()
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	n := NewNotifier(quietLogger())
	sub := n.Subscribe()
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody reads sub.C; overflow the buffer and keep going.
		for i := 0; i < subscriberBuffer*2; i++ {
			n.Publish(Event{Kind: OrderUpdated, OrderID: int64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
