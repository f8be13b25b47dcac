package agent

import (
	"sync"
	"testing"

	"github.com/haasonsaas/actorcore/pkg/models"
)

func TestEventBus_PublishDeliversInRegistrationOrder(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var order []int

	for i := 0; i < 3; i++ {
		idx := i
		bus.Subscribe(func(models.AgentEvent) {
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
		})
	}

	bus.Publish(models.AgentEvent{Type: models.AgentEventStepStarted})

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestEventBus_SubscribeReplaysPastEvents(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(models.AgentEvent{Type: models.AgentEventStepStarted, Sequence: 1})
	bus.Publish(models.AgentEvent{Type: models.AgentEventStepStarted, Sequence: 2})

	var received []models.AgentEvent
	bus.Subscribe(func(e models.AgentEvent) {
		received = append(received, e)
	})

	if len(received) != 2 {
		t.Fatalf("expected replay of 2 past events, got %d", len(received))
	}

	bus.Publish(models.AgentEvent{Type: models.AgentEventStepStarted, Sequence: 3})
	if len(received) != 3 {
		t.Fatalf("expected 3 events after a new publish, got %d", len(received))
	}
}

func TestEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	count := 0
	unsub := bus.Subscribe(func(models.AgentEvent) { count++ })

	bus.Publish(models.AgentEvent{})
	unsub()
	bus.Publish(models.AgentEvent{})

	if count != 1 {
		t.Errorf("expected 1 delivery before unsubscribe, got %d", count)
	}
}

func TestEventBus_SubscriberPanicIsolated(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(func(models.AgentEvent) { panic("boom") })

	var second bool
	bus.Subscribe(func(models.AgentEvent) { second = true })

	bus.Publish(models.AgentEvent{})

	if !second {
		t.Error("second subscriber should still run after the first panics")
	}
}

func TestEventBus_Once(t *testing.T) {
	bus := NewEventBus()
	count := 0
	bus.Once(func(models.AgentEvent) { count++ })

	bus.Publish(models.AgentEvent{})
	bus.Publish(models.AgentEvent{})

	if count != 1 {
		t.Errorf("Once subscriber should fire exactly once, got %d", count)
	}
}

func TestEventBus_Events(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(models.AgentEvent{Sequence: 1})
	bus.Publish(models.AgentEvent{Sequence: 2})

	events := bus.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 logged events, got %d", len(events))
	}

	events[0].Sequence = 99
	if bus.Events()[0].Sequence == 99 {
		t.Error("Events() should return a copy, not the internal log")
	}
}
