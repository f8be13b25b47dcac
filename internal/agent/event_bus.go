package agent

import (
	"context"
	"sync"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// Subscriber receives AgentEvents from an EventBus.
type Subscriber func(models.AgentEvent)

// EventBus is a typed publish/subscribe emitter for agent events (spec.md
// §4.3). It retains the full event log for its lifetime (bounded by the
// owning run or actor's lifetime, not forever) so that a subscriber joining
// mid-run is replayed everything published so far, then receives
// incremental deliveries in publish order.
//
// A subscriber's panic is recovered and does not propagate to the
// publisher, nor does it block delivery to other subscribers — the same
// isolation guarantee every EventSink attached via agent.WithEventSinks
// gets.
type EventBus struct {
	mu      sync.Mutex
	log     []models.AgentEvent
	nextID  uint64
	subs    map[uint64]Subscriber
	order   []uint64
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[uint64]Subscriber)}
}

// Publish appends the event to the log and delivers it to every live
// subscriber in registration order.
func (b *EventBus) Publish(e models.AgentEvent) {
	b.mu.Lock()
	b.log = append(b.log, e)
	ids := make([]uint64, len(b.order))
	copy(ids, b.order)
	subs := make(map[uint64]Subscriber, len(b.subs))
	for id, s := range b.subs {
		subs[id] = s
	}
	b.mu.Unlock()

	for _, id := range ids {
		if cb, ok := subs[id]; ok {
			safeInvoke(cb, e)
		}
	}
}

// Subscribe registers cb, immediately replaying the past event log to it,
// then delivers subsequent publishes. Returns an unsubscribe function.
func (b *EventBus) Subscribe(cb Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = cb
	b.order = append(b.order, id)
	past := make([]models.AgentEvent, len(b.log))
	copy(past, b.log)
	b.mu.Unlock()

	for _, e := range past {
		safeInvoke(cb, e)
	}

	return func() { b.unsubscribe(id) }
}

// Once registers cb to receive only the next published event (no replay),
// automatically unsubscribing after delivery.
func (b *EventBus) Once(cb Subscriber) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	var wrapped Subscriber
	wrapped = func(e models.AgentEvent) {
		b.unsubscribe(id)
		cb(e)
	}
	b.subs[id] = wrapped
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() { b.unsubscribe(id) }
}

func (b *EventBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Events returns a copy of the full event log so far.
func (b *EventBus) Events() []models.AgentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.AgentEvent, len(b.log))
	copy(out, b.log)
	return out
}

// Emit implements EventSink so an EventBus can be plugged directly into an
// EventEmitter as its sink.
func (b *EventBus) Emit(_ context.Context, e models.AgentEvent) {
	b.Publish(e)
}

func safeInvoke(cb Subscriber, e models.AgentEvent) {
	defer func() {
		_ = recover()
	}()
	cb(e)
}
