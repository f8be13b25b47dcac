package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/actorcore/internal/agent"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// TimedTaskScheduler fires a Callback at each instant described by a
// CronTask or TickTask until the returned TimedTab is cancelled (or, for a
// Once task, after its first fire). Every fire is recorded in an
// ExecutionStore for diagnostics.
type TimedTaskScheduler struct {
	logger         *slog.Logger
	now            func() time.Time
	executionStore ExecutionStore

	wg sync.WaitGroup
}

// Option configures a TimedTaskScheduler.
type Option func(*TimedTaskScheduler)

// WithLogger overrides the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *TimedTaskScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the clock, primarily for tests.
func WithNow(now func() time.Time) Option {
	return func(s *TimedTaskScheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExecutionStore overrides the fire-history store.
func WithExecutionStore(store ExecutionStore) Option {
	return func(s *TimedTaskScheduler) {
		if store != nil {
			s.executionStore = store
		}
	}
}

// NewTimedTaskScheduler creates a TimedTaskScheduler.
func NewTimedTaskScheduler(opts ...Option) *TimedTaskScheduler {
	s := &TimedTaskScheduler{
		logger:         slog.Default().With("component", "cron"),
		now:            time.Now,
		executionStore: NewMemoryExecutionStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleCron fires cb at each instant the cron expression matches, until
// the returned TimedTab is cancelled or (if task.Once) after the first fire.
func (s *TimedTaskScheduler) ScheduleCron(task CronTask, cb Callback) (*TimedTab, error) {
	expr := strings.TrimSpace(task.Cron)
	if expr == "" {
		return nil, fmt.Errorf("cron expression is required")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return s.start(task.Once, schedule.Next, cb, "cron")
}

// ScheduleTick fires cb every task.Tick, until the returned TimedTab is
// cancelled or (if task.Once) after the first fire.
func (s *TimedTaskScheduler) ScheduleTick(task TickTask, cb Callback) (*TimedTab, error) {
	if task.Tick <= 0 {
		return nil, fmt.Errorf("tick interval must be positive")
	}
	return s.start(task.Once, func(from time.Time) time.Time {
		return from.Add(task.Tick)
	}, cb, "tick")
}

// IterateTimed returns a lazy stream of fire times for task, which must be a
// CronTask or TickTask. Calling Return on the iterator cancels the schedule;
// a fresh call to IterateTimed always creates a new, independent schedule.
func (s *TimedTaskScheduler) IterateTimed(task any) (*TimedIterator, error) {
	it := newTimedIterator()
	push := func(fireTime time.Time, _ func()) { it.push(fireTime) }

	var tab *TimedTab
	var err error
	switch t := task.(type) {
	case CronTask:
		tab, err = s.ScheduleCron(t, push)
	case TickTask:
		tab, err = s.ScheduleTick(t, push)
	default:
		return nil, fmt.Errorf("iterateTimed: unsupported task type %T", task)
	}
	if err != nil {
		return nil, err
	}
	it.tab = tab
	return it, nil
}

// Wait blocks until every fire loop started by this scheduler has returned
// (i.e. every TimedTab it produced has been cancelled). Mainly useful in
// tests that cancel every tab and want a clean shutdown point.
func (s *TimedTaskScheduler) Wait() {
	s.wg.Wait()
}

func (s *TimedTaskScheduler) start(once bool, next func(time.Time) time.Time, cb Callback, kind string) (*TimedTab, error) {
	if cb == nil {
		return nil, fmt.Errorf("callback is required")
	}

	ctx, stop := context.WithCancel(context.Background())
	tab := newTimedTab(stop)
	taskID := uuid.NewString()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		current := s.now()
		for {
			fireAt := next(current)
			if fireAt.IsZero() {
				tab.Cancel()
				return
			}
			wait := fireAt.Sub(s.now())
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case fireTime := <-timer.C:
				s.record(taskID, kind, fireTime)
				cb(fireTime, tab.Cancel)
				if once || tab.Cancelled() {
					tab.Cancel()
					return
				}
				current = fireTime
			}
		}
	}()

	return tab, nil
}

func (s *TimedTaskScheduler) record(taskID, kind string, at time.Time) {
	if s.executionStore == nil {
		return
	}
	exec := &JobExecution{
		ID:          uuid.NewString(),
		JobID:       taskID,
		Status:      ExecutionSucceeded,
		StartedAt:   at,
		CompletedAt: at,
	}
	if err := s.executionStore.Create(context.Background(), exec); err != nil && s.logger != nil {
		s.logger.Warn("cron fire record failed", "task_id", taskID, "kind", kind, "error", err)
	}
}

// AgentFactory produces an Actor bound to a fresh AgentTask invocation when
// the task does not already carry one.
type AgentFactory func() (*agent.Actor, error)

// AgentTask binds a unit of scheduled work to an Actor. If Agent is nil, the
// AgentTaskScheduler's factory produces one for this invocation.
type AgentTask struct {
	Name  string
	Agent *agent.Actor
	Work  func(ctx context.Context, actor *agent.Actor, scheduler *AgentTaskScheduler) error
}

// AgentTaskScheduler invokes AgentTask.Work against a bound or freshly
// created Actor, and can wait for that actor to go idle.
type AgentTaskScheduler struct {
	factory AgentFactory
	logger  *slog.Logger
	poll    time.Duration
}

// AgentSchedulerOption configures an AgentTaskScheduler.
type AgentSchedulerOption func(*AgentTaskScheduler)

// WithAgentLogger overrides the AgentTaskScheduler's logger.
func WithAgentLogger(logger *slog.Logger) AgentSchedulerOption {
	return func(s *AgentTaskScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollInterval overrides how often WaitForIdle samples actor status.
func WithPollInterval(interval time.Duration) AgentSchedulerOption {
	return func(s *AgentTaskScheduler) {
		if interval > 0 {
			s.poll = interval
		}
	}
}

// NewAgentTaskScheduler creates an AgentTaskScheduler. factory may be nil if
// every AgentTask scheduled through it carries its own bound Agent.
func NewAgentTaskScheduler(factory AgentFactory, opts ...AgentSchedulerOption) *AgentTaskScheduler {
	s := &AgentTaskScheduler{
		factory: factory,
		logger:  slog.Default().With("component", "cron.agent"),
		poll:    10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run invokes task.Work against task.Agent, or against an Actor produced by
// the scheduler's factory when task.Agent is nil.
func (s *AgentTaskScheduler) Run(ctx context.Context, task AgentTask) error {
	if task.Work == nil {
		return fmt.Errorf("agent task %q has no work function", task.Name)
	}
	actor := task.Agent
	if actor == nil {
		if s.factory == nil {
			return fmt.Errorf("agent task %q has no bound agent and no factory configured", task.Name)
		}
		created, err := s.factory()
		if err != nil {
			return fmt.Errorf("create agent for task %q: %w", task.Name, err)
		}
		actor = created
	}
	return task.Work(ctx, actor, s)
}

// WaitForIdle resolves when actor's status is no longer running/preparing,
// or when timeout elapses (timeout<=0 waits indefinitely, bounded only by
// ctx).
func (s *AgentTaskScheduler) WaitForIdle(ctx context.Context, actor *agent.Actor, timeout time.Duration) error {
	if actor == nil {
		return fmt.Errorf("waitForIdle: nil actor")
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if !isBusy(actor.Status()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("waitForIdle: timed out after %s", timeout)
		case <-ticker.C:
		}
	}
}

func isBusy(status agent.ActorStatus) bool {
	return status == agent.StatusRunning || status == agent.StatusPreparing
}
