// Package observability provides metrics and structured logging for the
// actor runtime, both driven off the Event Bus rather than threaded through
// the main loop.
//
// # Architecture
//
// Metrics (Prometheus) and Logger (slog, with sensitive-data redaction) both
// implement the same structural shape as internal/agent.EventSink: Emit(ctx,
// models.AgentEvent). An Actor attaches them via agent.WithEventSinks
// alongside its own broadcast sink, so they observe a run exactly the way
// any other Event Bus subscriber would, isolated from the run by the same
// panic-recovery guarantee as any other subscriber.
//
// # Metrics
//
// Metrics tracks, under the actorcore_* namespace:
//   - Agent run outcomes and retry attempts
//   - Tool execution counts and latency, by tool and outcome
//   - Context Manager summarisation outcomes
//   - Timed Task Scheduler fires
//   - Per-actor run-queue depth
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	actor := agent.NewActor(identity, a, template, memory, agent.WithEventSinks(metrics))
//
// # Logging
//
// Logger is built on Go's slog package with:
//   - Automatic request/session/user ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	actor := agent.NewActor(identity, a, template, memory, agent.WithEventSinks(logger))
package observability
