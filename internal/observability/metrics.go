package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// Metrics provides a centralized interface for collecting Actor Runtime
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Agent run lifecycle (started/finished, by outcome)
//   - Tool call counts and latency, by tool and outcome
//   - LLM call latency and token usage
//   - Context Manager summarisation triggers
//   - Timed Task Scheduler fires
//   - Per-actor run-queue depth
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordRunAttempt("success")
type Metrics struct {
	// RunsTotal counts Agent runs by outcome (ok|aborted|retry_exhausted|adapter_error|max_steps).
	RunsTotal *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (agent|tool|scheduler|memory), error_type
	ErrorCounter *prometheus.CounterVec

	// SummarizeTotal counts Context Manager summarisation runs.
	// Labels: outcome (ok|fallback)
	SummarizeTotal *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization.
	// Labels: provider, model
	// Buckets: 1000, 4000, 8000, 16000, 32000, 64000, 128000
	ContextWindowUsed *prometheus.HistogramVec

	// SchedulerFires counts Timed Task Scheduler fires by task kind.
	// Labels: kind (cron|tick)
	SchedulerFires *prometheus.CounterVec

	// ActorQueueDepth tracks the number of queued Work() inputs per actor.
	// Labels: actor_id
	ActorQueueDepth *prometheus.GaugeVec

	// RunAttempts counts run attempts (for retry tracking).
	// Labels: status (success|retry|failed)
	RunAttempts *prometheus.CounterVec

	mu         sync.Mutex
	toolStarts map[string]time.Time
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		toolStarts: make(map[string]time.Time),
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_runs_total",
				Help: "Total number of Agent runs by outcome",
			},
			[]string{"outcome"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "actorcore_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "actorcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		SummarizeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_summarize_total",
				Help: "Total number of Context Manager summarisation passes by outcome",
			},
			[]string{"outcome"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "actorcore_context_window_tokens",
				Help:    "Context window tokens used",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),

		SchedulerFires: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_scheduler_fires_total",
				Help: "Total number of Timed Task Scheduler fires by task kind",
			},
			[]string{"kind"},
		),

		ActorQueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "actorcore_actor_queue_depth",
				Help: "Current number of queued Work() inputs per actor",
			},
			[]string{"actor_id"},
		),

		RunAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actorcore_run_attempts_total",
				Help: "Total number of run attempts by status",
			},
			[]string{"status"},
		),
	}
}

// RecordLLMRequest records metrics for an LLM API request.
//
// Example:
//
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-3-opus", "success", time.Since(start).Seconds(), 100, 500)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("agent", "api_timeout")
//	metrics.RecordError("channel", "auth_failed")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordContextWindow records context window utilization.
//
// Example:
//
//	metrics.RecordContextWindow("anthropic", "claude-3-opus", 45000)
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}

// RecordRunAttempt records a run attempt.
//
// Example:
//
//	metrics.RecordRunAttempt("success")
//	metrics.RecordRunAttempt("retry")
//	metrics.RecordRunAttempt("failed")
func (m *Metrics) RecordRunAttempt(status string) {
	m.RunAttempts.WithLabelValues(status).Inc()
}

// RecordRunFinished increments the runs-finished counter for a given outcome.
//
// Example:
//
//	metrics.RecordRunFinished("ok")
//	metrics.RecordRunFinished("aborted")
//	metrics.RecordRunFinished("maxSteps")
func (m *Metrics) RecordRunFinished(outcome string) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// RecordSummarize increments the summarisation counter for a given outcome.
//
// Example:
//
//	metrics.RecordSummarize("ok")
//	metrics.RecordSummarize("fallback")
func (m *Metrics) RecordSummarize(outcome string) {
	m.SummarizeTotal.WithLabelValues(outcome).Inc()
}

// RecordSchedulerFire increments the scheduler-fires counter for a given task kind.
//
// Example:
//
//	metrics.RecordSchedulerFire("cron")
//	metrics.RecordSchedulerFire("tick")
func (m *Metrics) RecordSchedulerFire(kind string) {
	m.SchedulerFires.WithLabelValues(kind).Inc()
}

// SetActorQueueDepth sets the current queued-work depth for an actor.
//
// Example:
//
//	metrics.SetActorQueueDepth("actor-42", 3)
func (m *Metrics) SetActorQueueDepth(actorID string, depth int) {
	m.ActorQueueDepth.WithLabelValues(actorID).Set(float64(depth))
}

// Emit satisfies internal/agent.EventSink structurally, so a Metrics value
// can be attached directly to an Actor's event-sink chain (see
// agent.WithEventSinks) and self-populate off the Event Bus instead of being
// threaded explicitly through the main loop.
func (m *Metrics) Emit(_ context.Context, e models.AgentEvent) {
	switch e.Type {
	case models.AgentEventToolCallStarted:
		if e.ToolCall == nil {
			return
		}
		m.mu.Lock()
		m.toolStarts[e.ToolCall.CallID] = e.Time
		m.mu.Unlock()

	case models.AgentEventToolCallFinished:
		if e.ToolCall == nil {
			return
		}
		status := "success"
		if !e.ToolCall.Success {
			status = "error"
		}
		m.mu.Lock()
		startedAt, ok := m.toolStarts[e.ToolCall.CallID]
		delete(m.toolStarts, e.ToolCall.CallID)
		m.mu.Unlock()
		duration := 0.0
		if ok {
			duration = e.Time.Sub(startedAt).Seconds()
		}
		m.RecordToolExecution(e.ToolCall.Name, status, duration)
		if status == "error" {
			m.RecordError("tool", e.ToolCall.Name)
		}

	case models.AgentEventRunFinished:
		outcome := "ok"
		if e.RunFinished != nil && !e.RunFinished.OK {
			outcome = "error"
		}
		m.RecordRunFinished(outcome)
		m.RecordRunAttempt(outcome)

	case models.AgentEventSummarizeMessagesFinished:
		outcome := "ok"
		if e.Summarize != nil && e.Summarize.Fallback {
			outcome = "fallback"
		}
		m.RecordSummarize(outcome)

	case models.AgentEventLLMResponseReceived:
		if e.LLMResponse != nil && e.LLMResponse.TotalTokens > 0 {
			m.RecordContextWindow("unknown", "unknown", e.LLMResponse.TotalTokens)
		}
	}
}
