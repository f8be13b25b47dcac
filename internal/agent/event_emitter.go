package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// EventEmitter generates and dispatches AgentEvents with proper sequencing.
// It is the concrete producer side of the Event Bus (spec.md §4.3): every
// Agent run owns one emitter, writing into whatever EventSink the caller
// configured (a subscriber fan-out, a channel, or a no-op for tests).
type EventEmitter struct {
	runID    string
	sequence uint64 // atomic counter for monotonic sequencing
	step     int
	sink     EventSink
}

// NewEventEmitter creates a new event emitter for an agent run with the
// given sink. If sink is nil, a NopSink is used.
func NewEventEmitter(runID string, sink EventSink) *EventEmitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &EventEmitter{runID: runID, sink: sink}
}

// SetStep updates the current main-loop step for subsequent events.
func (e *EventEmitter) SetStep(step int) {
	e.step = step
}

func (e *EventEmitter) nextSeq() uint64 {
	return atomic.AddUint64(&e.sequence, 1)
}

func (e *EventEmitter) base(eventType models.AgentEventType) models.AgentEvent {
	return models.AgentEvent{
		Version:  1,
		Type:     eventType,
		Time:     time.Now(),
		Sequence: e.nextSeq(),
		RunID:    e.runID,
		Step:     e.step,
	}
}

func (e *EventEmitter) emit(ctx context.Context, event models.AgentEvent) models.AgentEvent {
	if e.sink != nil {
		e.sink.Emit(ctx, event)
	}
	return event
}

// Message emits a plain text notification (the Actor-side "message" event).
func (e *EventEmitter) Message(ctx context.Context, content string) models.AgentEvent {
	ev := e.base(models.AgentEventMessage)
	ev.Message = &models.MessageEventPayload{Content: content}
	return e.emit(ctx, ev)
}

// RunFinished emits the run's sole terminal event.
func (e *EventEmitter) RunFinished(ctx context.Context, ok bool, msg string, err error) models.AgentEvent {
	ev := e.base(models.AgentEventRunFinished)
	payload := &models.RunFinishedEventPayload{OK: ok, Msg: msg}
	if err != nil {
		payload.Error = err.Error()
	}
	ev.RunFinished = payload
	return e.emit(ctx, ev)
}

// EmaReplyReceived emits the structured-reply payload exactly once per
// successful privileged tool invocation.
func (e *EventEmitter) EmaReplyReceived(ctx context.Context, reply models.StructuredReply) models.AgentEvent {
	ev := e.base(models.AgentEventEmaReplyReceived)
	ev.EmaReplyReceived = &models.EmaReplyReceivedEventPayload{Reply: reply}
	return e.emit(ctx, ev)
}

// StepStarted emits a diagnostic event at the start of a main-loop step.
func (e *EventEmitter) StepStarted(ctx context.Context) models.AgentEvent {
	return e.emit(ctx, e.base(models.AgentEventStepStarted))
}

// LLMResponseReceived emits a diagnostic snapshot of one LLM turn.
func (e *EventEmitter) LLMResponseReceived(ctx context.Context, resp models.LLMResponse) models.AgentEvent {
	ev := e.base(models.AgentEventLLMResponseReceived)
	ev.LLMResponse = &models.LLMResponseEventPayload{
		FinishReason: resp.FinishReason,
		TotalTokens:  resp.TotalTokens,
		ToolCalls:    len(resp.Message.ToolCalls),
	}
	return e.emit(ctx, ev)
}

// ToolCallStarted emits a diagnostic event when a tool invocation begins.
func (e *EventEmitter) ToolCallStarted(ctx context.Context, callID, name string) models.AgentEvent {
	ev := e.base(models.AgentEventToolCallStarted)
	ev.ToolCall = &models.ToolCallEventPayload{CallID: callID, Name: name}
	return e.emit(ctx, ev)
}

// ToolCallFinished emits a diagnostic event when a tool invocation
// completes, successfully or not.
func (e *EventEmitter) ToolCallFinished(ctx context.Context, callID, name string, result models.ToolResult) models.AgentEvent {
	ev := e.base(models.AgentEventToolCallFinished)
	ev.ToolCall = &models.ToolCallEventPayload{
		CallID:  callID,
		Name:    name,
		Success: result.Success,
		Error:   result.Error,
	}
	return e.emit(ctx, ev)
}

// SummarizeStarted/SummarizeFinished bracket a history-summarisation pass.
func (e *EventEmitter) SummarizeStarted(ctx context.Context) models.AgentEvent {
	return e.emit(ctx, e.base(models.AgentEventSummarizeMessagesStarted))
}

func (e *EventEmitter) SummarizeFinished(ctx context.Context, roundsSummarized int, fallback bool) models.AgentEvent {
	ev := e.base(models.AgentEventSummarizeMessagesFinished)
	ev.Summarize = &models.SummarizeEventPayload{RoundsSummarized: roundsSummarized, Fallback: fallback}
	return e.emit(ctx, ev)
}

// TokenEstimationFallbacked marks a fallback to the chars/2.5 heuristic.
func (e *EventEmitter) TokenEstimationFallbacked(ctx context.Context, reason string) models.AgentEvent {
	ev := e.base(models.AgentEventTokenEstimationFallbacked)
	ev.TokenEstimation = &models.TokenEstimationEventPayload{Reason: reason}
	return e.emit(ctx, ev)
}

// StatsCollector accumulates run statistics by observing the event stream,
// the way a subscriber would; it holds no privileged access to the run.
type StatsCollector struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Steps        int
	ToolCalls    int
	ToolFailures int
	Finished     bool
	OK           bool
}

// NewStatsCollector creates a new stats collector for the given run ID.
func NewStatsCollector(runID string) *StatsCollector {
	return &StatsCollector{RunID: runID, StartedAt: time.Now()}
}

// OnEvent processes an event and updates the accumulated statistics.
func (c *StatsCollector) OnEvent(_ context.Context, e models.AgentEvent) {
	switch e.Type {
	case models.AgentEventStepStarted:
		c.Steps++
	case models.AgentEventToolCallFinished:
		c.ToolCalls++
		if e.ToolCall != nil && !e.ToolCall.Success {
			c.ToolFailures++
		}
	case models.AgentEventRunFinished:
		c.Finished = true
		c.FinishedAt = e.Time
		if e.RunFinished != nil {
			c.OK = e.RunFinished.OK
		}
	}
}
