// Package cron implements the Timed Task Scheduler: two orthogonal
// schedulers that bind timed ticks to agent work. TimedTaskScheduler fires a
// plain callback at each scheduled instant; AgentTaskScheduler invokes a work
// function against a bound or freshly created Actor and can wait for it to
// go idle.
package cron

import (
	"sync"
	"time"
)

// CronTask describes a schedule expressed as a standard 5-field cron
// expression (seconds optional, descriptors like @hourly allowed). Once
// fires the callback a single time, at the expression's next match, rather
// than indefinitely.
type CronTask struct {
	Cron string
	Once bool
}

// TickTask describes a schedule expressed as a fixed interval. Once fires
// the callback a single time, after the first tick.
type TickTask struct {
	Tick time.Duration
	Once bool
}

// Callback is invoked at each scheduled instant with the fire time. cancel
// stops further fires; it is the same function backing the task's TimedTab
// and is safe to call from within the callback.
type Callback func(fireTime time.Time, cancel func())

// TimedTab is the handle returned by scheduling a CronTask or TickTask.
// Cancel is idempotent: calling it more than once, concurrently or not, has
// the same effect as calling it once.
type TimedTab struct {
	mu        sync.Mutex
	cancelled bool
	stop      func()
}

func newTimedTab(stop func()) *TimedTab {
	return &TimedTab{stop: stop}
}

// Cancelled reports whether Cancel has already run.
func (t *TimedTab) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Cancel stops further fires. Idempotent.
func (t *TimedTab) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	stop := t.stop
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}
