// Package events provides the synchronous mutation event bus.
//
// Every successful write against the node store publishes one event per
// logical change. Subscribers run inline on the publishing goroutine, in
// registration order; there is no buffering, persistence, or replay. The
// bus exists for in-process cache invalidation and live-view refresh,
// nothing more.
package events

import (
	"sync"
	"time"
)

type Kind string

const (
	NodeCreated     Kind = "node:created"
	NodeUpdated     Kind = "node:updated"
	NodeDeleted     Kind = "node:deleted"
	PropertySet     Kind = "property:set"
	PropertyAdded   Kind = "property:added"
	PropertyRemoved Kind = "property:removed"
	SupertagAdded   Kind = "supertag:added"
	SupertagRemoved Kind = "supertag:removed"
)

// Event describes a single committed mutation. Fields beyond Kind,
// NodeID, and Timestamp are populated only where the kind calls for
// them: FieldSystemID on property events, SupertagID on supertag
// events, Before/After on content changes.
type Event struct {
	Kind          Kind
	NodeID        string
	FieldSystemID string
	SupertagID    string
	Before        *string
	After         *string
	Timestamp     time.Time
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Bus is a synchronous in-process publish/subscribe channel. One
// instance is shared per process, constructed at the composition root
// and passed by reference; the zero value is not usable, call New.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns its unsubscribe function. The
// returned function is idempotent.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every subscriber inline, in registration order.
// Callers publish only after the underlying write has committed.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Clear drops every subscriber. Test/reset hook.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Len reports the current subscriber count.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
