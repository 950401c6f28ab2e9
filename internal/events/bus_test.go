package events

import "testing"

func TestSubscribePublish(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventTxSubmitted, 1)
	defer unsub()

	bus.Publish(EventTxSubmitted, "sig-1")
	select {
	case msg := <-ch:
		if msg != "sig-1" {
			t.Errorf("payload = %v, want sig-1", msg)
		}
	default:
		t.Fatal("no message delivered")
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventTxFailed, 1)
	defer unsub()

	// Second publish overflows the buffer and is dropped, not blocked on.
	bus.Publish(EventTxFailed, "first")
	bus.Publish(EventTxFailed, "second")

	if msg := <-ch; msg != "first" {
		t.Errorf("payload = %v, want first", msg)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected second delivery: %v", msg)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventRiskAlert, 1)
	unsub()

	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}
	// Publishing to a topic with no subscribers is a no-op.
	bus.Publish(EventRiskAlert, "orphan")
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	confirmed, unsub := bus.Subscribe(EventTxConfirmed, 1)
	defer unsub()

	bus.Publish(EventTxReaped, "sig-1")
	select {
	case msg := <-confirmed:
		t.Errorf("cross-topic delivery: %v", msg)
	default:
	}
}
