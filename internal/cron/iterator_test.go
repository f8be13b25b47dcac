package cron

import (
	"context"
	"testing"
	"time"
)

func TestTimedIterator_DeliversQueuedFiresInOrder(t *testing.T) {
	s := NewTimedTaskScheduler()
	it, err := s.IterateTimed(TickTask{Tick: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("IterateTimed() error = %v", err)
	}
	defer it.Return()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var prev time.Time
	for i := 0; i < 3; i++ {
		fireTime, ok := it.Next(ctx)
		if !ok {
			t.Fatalf("expected a fire, iterator exhausted at i=%d", i)
		}
		if i > 0 && fireTime.Before(prev) {
			t.Fatalf("expected fires delivered in order, got %v after %v", fireTime, prev)
		}
		prev = fireTime
	}
}

func TestTimedIterator_NextResolvesDirectlyWhenConsumerWaitsFirst(t *testing.T) {
	s := NewTimedTaskScheduler()
	it, err := s.IterateTimed(TickTask{Tick: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("IterateTimed() error = %v", err)
	}
	defer it.Return()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if _, ok := it.Next(ctx); !ok {
		t.Fatal("expected a fire")
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected Next to wait for the tick, resolved after only %v", elapsed)
	}
}

func TestTimedIterator_ReturnCancelsAndUnblocksNext(t *testing.T) {
	s := NewTimedTaskScheduler()
	it, err := s.IterateTimed(TickTask{Tick: time.Hour})
	if err != nil {
		t.Fatalf("IterateTimed() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		if _, ok := it.Next(ctx); ok {
			t.Error("expected Next to report exhaustion after Return")
		}
	}()

	time.Sleep(10 * time.Millisecond)
	it.Return()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Return to unblock a pending Next")
	}
}

func TestTimedIterator_RestartingCreatesIndependentSchedule(t *testing.T) {
	s := NewTimedTaskScheduler()

	first, err := s.IterateTimed(TickTask{Tick: 5 * time.Millisecond, Once: true})
	if err != nil {
		t.Fatalf("IterateTimed() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := first.Next(ctx); !ok {
		t.Fatal("expected the first iterator to fire")
	}
	first.Return()

	second, err := s.IterateTimed(TickTask{Tick: 5 * time.Millisecond, Once: true})
	if err != nil {
		t.Fatalf("second IterateTimed() error = %v", err)
	}
	defer second.Return()
	if _, ok := second.Next(ctx); !ok {
		t.Fatal("expected the second, independent iterator to also fire")
	}
}
