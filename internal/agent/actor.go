package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// ActorStatus is the Actor Worker's externally-visible lifecycle state
// (spec.md §4.4).
type ActorStatus string

const (
	StatusIdle      ActorStatus = "idle"
	StatusPreparing ActorStatus = "preparing"
	StatusRunning   ActorStatus = "running"
)

// memoryBufferPlaceholder is substituted in an Actor's system-prompt template
// with the rendered recent-buffer window.
const memoryBufferPlaceholder = "{MEMORY_BUFFER}"

// bufferWindowSize is the number of most-recent buffer entries injected into
// the system prompt.
const bufferWindowSize = 10

// MemorySearcher is the narrow memory capability an Actor needs: the three
// operations spec.md §4.4 names (addShortTermMemory/addLongTermMemory/
// search), scoped by ActorIdentity. internal/memory.ActorMemory satisfies
// this structurally; Actor depends on the interface, not the package, so the
// two packages never import one another.
type MemorySearcher interface {
	AddShortTerm(ctx context.Context, actor models.ActorIdentity, role, content string) error
	AddLongTerm(ctx context.Context, actor models.ActorIdentity, content string) error
	Search(ctx context.Context, actor models.ActorIdentity, query string, limit int) (*models.SearchResponse, error)
}

// BroadcastSnapshot is delivered to an Actor's subscribers: the current
// status plus every event published since the previous broadcast. Unlike
// EventBus's per-event delivery, all subscribers see the same snapshot
// boundaries — this is a single global diff, not one per subscriber.
type BroadcastSnapshot struct {
	Status ActorStatus
	Events []models.AgentEvent
}

// ActorSubscriber receives BroadcastSnapshots.
type ActorSubscriber func(BroadcastSnapshot)

// Actor is the per-ActorIdentity worker of spec.md §4.4: at most one active
// Agent run at a time, an append-only buffer log used both for durable
// transcript and for "{MEMORY_BUFFER}" system-prompt injection, and
// preemption semantics where new input aborts an in-flight run rather than
// waiting behind it.
type Actor struct {
	identity             models.ActorIdentity
	agent                *Agent
	systemPromptTemplate string
	memory               MemorySearcher

	mu              sync.Mutex
	status          ActorStatus
	cachedState     *models.AgentState
	hasEmaReplyLast bool
	cancelRun       context.CancelFunc
	pending         []models.Content

	buffer       []models.BufferMessage
	nextBufferID int64

	allEvents        []models.AgentEvent
	lastBroadcastIdx int
	subs             map[uint64]ActorSubscriber
	order            []uint64
	nextSubID        uint64
}

// ActorOption configures optional behavior of NewActor.
type ActorOption func(*actorOptions)

type actorOptions struct {
	extraSinks []EventSink
}

// WithEventSinks attaches additional EventSinks (e.g. observability.Metrics,
// observability.Logger) alongside the Actor's own broadcast sink. Every
// attached sink observes the run's full event stream exactly like a direct
// EventBus.Subscribe caller would, fanned out via MultiSink.
func WithEventSinks(sinks ...EventSink) ActorOption {
	return func(o *actorOptions) {
		o.extraSinks = append(o.extraSinks, sinks...)
	}
}

// NewActor builds an idle Actor bound to one identity and Agent. The system
// prompt template should contain the literal substring "{MEMORY_BUFFER}"
// wherever the recent buffer window belongs.
func NewActor(identity models.ActorIdentity, agent *Agent, systemPromptTemplate string, memory MemorySearcher, opts ...ActorOption) *Actor {
	a := &Actor{
		identity:             identity,
		agent:                agent,
		systemPromptTemplate: systemPromptTemplate,
		memory:               memory,
		status:               StatusIdle,
		subs:                 make(map[uint64]ActorSubscriber),
	}

	cfg := actorOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.extraSinks) > 0 {
		agent.Sink = NewMultiSink(append([]EventSink{a}, cfg.extraSinks...)...)
	} else {
		agent.Sink = a
	}
	return a
}

// Status returns the actor's current lifecycle state.
func (a *Actor) Status() ActorStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Work enqueues new input. If the actor is idle, a run starts immediately.
// If a run is already active (running or preparing), that run is preempted:
// its context is cancelled, and once it unwinds the new input is folded into
// the next run, resuming the aborted run's cached state unless that run had
// already emitted a structured reply (spec.md §9).
func (a *Actor) Work(_ context.Context, inputs []models.Content) error {
	if len(inputs) == 0 {
		return &PreconditionError{Message: "inputs must not be empty"}
	}

	a.mu.Lock()
	now := time.Now()
	for _, c := range inputs {
		a.buffer = append(a.buffer, models.NewUserBufferMessage(a.nextBufferID, a.identity.String(), c.Text, now))
		a.nextBufferID++
	}
	a.pending = append(a.pending, inputs...)

	switch a.status {
	case StatusIdle:
		a.status = StatusPreparing
		a.mu.Unlock()
		go a.runLoop()
	case StatusRunning, StatusPreparing:
		if a.cancelRun != nil {
			a.cancelRun()
		}
		a.mu.Unlock()
	default:
		a.mu.Unlock()
	}
	return nil
}

// runLoop drains a.pending one run at a time until it is empty, then goes
// idle. Only one runLoop goroutine is ever active per actor: Work only
// spawns one when the actor transitions out of idle.
func (a *Actor) runLoop() {
	for {
		a.mu.Lock()
		if len(a.pending) == 0 {
			a.status = StatusIdle
			a.mu.Unlock()
			return
		}
		inputs := a.pending
		a.pending = nil
		state := a.buildState(inputs)

		runCtx, cancel := context.WithCancel(context.Background())
		a.cancelRun = cancel
		a.status = StatusRunning
		a.mu.Unlock()

		outcome := a.agent.Run(runCtx, state)
		cancel()

		a.mu.Lock()
		a.cancelRun = nil
		newState := outcome.State
		a.cachedState = &newState
		a.hasEmaReplyLast = outcome.HasEmaReply
		if outcome.HasEmaReply && outcome.EmaReply != nil {
			a.buffer = append(a.buffer, models.NewReplyBufferMessage(a.nextBufferID, a.identity.String(), *outcome.EmaReply, time.Now()))
			a.nextBufferID++
		}
		a.mu.Unlock()
	}
}

// buildState resumes the cached state across preemption unless the prior run
// had already emitted a structured reply, in which case it starts fresh —
// the adopted resolution of spec.md §9's preemption-race Open Question.
func (a *Actor) buildState(inputs []models.Content) models.AgentState {
	systemPrompt := a.renderSystemPrompt()
	tools := a.agent.Tools.Specs()

	var messages []models.Message
	if a.cachedState != nil && !a.hasEmaReplyLast {
		messages = append(messages, a.cachedState.Messages...)
	}
	messages = append(messages, models.NewUserMessage(inputs))

	return models.AgentState{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Tools:        tools,
	}
}

// renderSystemPrompt substitutes the last bufferWindowSize buffer entries
// into the template's "{MEMORY_BUFFER}" placeholder.
func (a *Actor) renderSystemPrompt() string {
	window := a.buffer
	if len(window) > bufferWindowSize {
		window = window[len(window)-bufferWindowSize:]
	}

	rendered := "None."
	if len(window) > 0 {
		var b strings.Builder
		for i, bm := range window {
			if i > 0 {
				b.WriteString("\n")
			}
			t := time.Unix(bm.Time, 0).UTC().Format("2006-01-02 15:04:05")
			fmt.Fprintf(&b, "- [%s][role:%s][id:%d][name:%s] %s", t, bm.Role(), bm.ID, bm.Name, bm.DisplayText())
		}
		rendered = b.String()
	}

	return strings.ReplaceAll(a.systemPromptTemplate, memoryBufferPlaceholder, rendered)
}

// Emit implements EventSink: every event from every run this actor drives
// lands here and triggers a broadcast of exactly that one event to current
// subscribers.
func (a *Actor) Emit(_ context.Context, e models.AgentEvent) {
	a.mu.Lock()
	a.allEvents = append(a.allEvents, e)
	diff := append([]models.AgentEvent(nil), a.allEvents[a.lastBroadcastIdx:]...)
	a.lastBroadcastIdx = len(a.allEvents)
	status := a.status
	ids := make([]uint64, len(a.order))
	copy(ids, a.order)
	subs := make(map[uint64]ActorSubscriber, len(a.subs))
	for id, s := range a.subs {
		subs[id] = s
	}
	a.mu.Unlock()

	snapshot := BroadcastSnapshot{Status: status, Events: diff}
	for _, id := range ids {
		if cb, ok := subs[id]; ok {
			safeInvokeBroadcast(cb, snapshot)
		}
	}
}

// Subscribe registers cb, immediately replaying every event so far alongside
// the current status, then delivers incremental broadcasts as new events
// arrive. Returns an unsubscribe function.
func (a *Actor) Subscribe(cb ActorSubscriber) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subs[id] = cb
	a.order = append(a.order, id)
	replay := BroadcastSnapshot{Status: a.status, Events: append([]models.AgentEvent(nil), a.allEvents...)}
	a.mu.Unlock()

	safeInvokeBroadcast(cb, replay)
	return func() { a.unsubscribe(id) }
}

// Unsubscribe removes a previously-registered subscriber by the function
// Subscribe returned; it exists as a spec-named alias over that closure for
// callers that track subscriptions by id rather than closure.
func (a *Actor) unsubscribe(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.subs[id]; !ok {
		return
	}
	delete(a.subs, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func safeInvokeBroadcast(cb ActorSubscriber, s BroadcastSnapshot) {
	defer func() {
		_ = recover()
	}()
	cb(s)
}

// Search, AddShortTermMemory and AddLongTermMemory proxy to the configured
// MemorySearcher, scoped to this actor's identity.
func (a *Actor) Search(ctx context.Context, query string, limit int) (*models.SearchResponse, error) {
	if a.memory == nil {
		return nil, ErrUnimplemented
	}
	return a.memory.Search(ctx, a.identity, query, limit)
}

func (a *Actor) AddShortTermMemory(ctx context.Context, role, content string) error {
	if a.memory == nil {
		return ErrUnimplemented
	}
	return a.memory.AddShortTerm(ctx, a.identity, role, content)
}

func (a *Actor) AddLongTermMemory(ctx context.Context, content string) error {
	if a.memory == nil {
		return ErrUnimplemented
	}
	return a.memory.AddLongTerm(ctx, a.identity, content)
}

// GetState and UpdateState are explicit stubs: spec.md §9 leaves external
// state inspection/replacement as an Open Question this implementation
// declines to resolve beyond a stable, erroring signature.
func (a *Actor) GetState(_ context.Context) (models.AgentState, error) {
	return models.AgentState{}, ErrUnimplemented
}

func (a *Actor) UpdateState(_ context.Context, _ models.AgentState) error {
	return ErrUnimplemented
}
