package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("draft.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindDraftUpdated, Timestamp: time.Now(), Payload: ChannelChange{ChannelID: "c1"}})

	select {
	case evt := <-ch:
		if evt.Kind != KindDraftUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindDraftUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("outbox.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindDraftUpdated})
	b.Publish(Event{Kind: KindOutboxUpdated})

	select {
	case evt := <-ch:
		if evt.Kind != KindOutboxUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, KindOutboxUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the draft event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("draft.", 10)
	unsub()

	b.Publish(Event{Kind: KindDraftUpdated})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("attachment.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: KindAttachmentAdded})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: KindAttachmentRemoved})

	evt := <-ch
	if evt.Kind != KindAttachmentAdded {
		t.Errorf("got %q, want %q", evt.Kind, KindAttachmentAdded)
	}
}
