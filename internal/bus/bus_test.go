package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Emit(KindMessageCreated, "c1")

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageCreated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageCreated)
		}
		if evt.Payload != "c1" {
			t.Errorf("payload = %v, want c1", evt.Payload)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Emit should stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chatlist.", 10)
	defer unsub()

	b.Emit(KindScreenState, nil)
	b.Emit(KindChatListRendered, nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindChatListRendered {
			t.Errorf("got kind %q, want %q", evt.Kind, KindChatListRendered)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("screen.", 10)
	unsub()

	b.Emit(KindScreenState, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	b.Publish(Event{Kind: "test.two"})

	if evt := <-ch; evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	select {
	case evt := <-ch:
		t.Errorf("second event should have been dropped, got %q", evt.Kind)
	default:
	}
}
