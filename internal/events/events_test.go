package events

import (
	"testing"
)

func TestPublishOrder(t *testing.T) {
	bus := New()

	var got []string
	bus.Subscribe(func(ev Event) { got = append(got, "first:"+string(ev.Kind)) })
	bus.Subscribe(func(ev Event) { got = append(got, "second:"+string(ev.Kind)) })

	bus.Publish(Event{Kind: NodeCreated, NodeID: "n1"})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "first:node:created" || got[1] != "second:node:created" {
		t.Fatalf("subscribers ran out of registration order: %v", got)
	}
}

func TestPublishSetsTimestamp(t *testing.T) {
	bus := New()

	var seen Event
	bus.Subscribe(func(ev Event) { seen = ev })
	bus.Publish(Event{Kind: NodeDeleted, NodeID: "n1"})

	if seen.Timestamp.IsZero() {
		t.Fatalf("expected Publish to stamp the event")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := New()

	count := 0
	cancel := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{Kind: NodeCreated, NodeID: "n1"})
	cancel()
	cancel() // idempotent
	bus.Publish(Event{Kind: NodeCreated, NodeID: "n2"})

	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}
	if bus.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", bus.Len())
	}
}

func TestClear(t *testing.T) {
	bus := New()

	count := 0
	bus.Subscribe(func(Event) { count++ })
	bus.Subscribe(func(Event) { count++ })
	bus.Clear()
	bus.Publish(Event{Kind: NodeUpdated, NodeID: "n1"})

	if count != 0 {
		t.Fatalf("expected no deliveries after Clear, got %d", count)
	}
}

func TestSubscribeDuringPublish(t *testing.T) {
	bus := New()

	late := 0
	bus.Subscribe(func(Event) {
		bus.Subscribe(func(Event) { late++ })
	})
	bus.Publish(Event{Kind: NodeCreated, NodeID: "n1"})

	// The late subscriber joins after the in-flight emission snapshot.
	if late != 0 {
		t.Fatalf("late subscriber received the triggering event")
	}
	bus.Publish(Event{Kind: NodeCreated, NodeID: "n2"})
	if late != 1 {
		t.Fatalf("late subscriber missed the next event, got %d", late)
	}
}
