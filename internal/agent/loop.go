package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// DefaultMaxSteps bounds a single Agent run when the caller does not
// override it.
const DefaultMaxSteps = 50

// DefaultTokenLimit is the Context Manager's summarisation threshold when
// the caller does not override it.
const DefaultTokenLimit = 100_000

// Agent drives the main loop of spec.md §4.2: one LLM turn, then the tool
// calls it requested (in order, synchronously), until the LLM stops asking
// for tools, the run is aborted, or maxSteps is exhausted.
type Agent struct {
	LLM        LLMAdapter
	Tools      *ToolRegistry
	MaxSteps   int
	TokenLimit int
	Sink       EventSink
	Summarizer SummaryProvider

	// ModelID, if set, cross-checks the Context Manager's summarisation
	// trigger against the named model's real context window in addition
	// to TokenLimit (internal/config.ContextManagerConfig.ModelID).
	ModelID string
}

// NewAgent builds an Agent with spec defaults filled in.
func NewAgent(llm LLMAdapter, tools *ToolRegistry, sink EventSink) *Agent {
	return &Agent{
		LLM:        llm,
		Tools:      tools,
		MaxSteps:   DefaultMaxSteps,
		TokenLimit: DefaultTokenLimit,
		Sink:       sink,
	}
}

// RunOutcome is the result of one Agent run.
type RunOutcome struct {
	RunID       string
	State       models.AgentState
	OK          bool
	Msg         string
	Err         error
	HasEmaReply bool
	EmaReply    *models.StructuredReply
}

// Run executes the main loop against state until termination, returning the
// single terminal outcome. There is exactly one runFinished event per run
// (spec.md §8, universal property 1); this method's return always matches
// the last event it emitted.
func (a *Agent) Run(ctx context.Context, state models.AgentState) RunOutcome {
	runID := uuid.NewString()
	emitter := NewEventEmitter(runID, a.Sink)
	cm := NewContextManager(state, a.TokenLimit, a.Summarizer, emitter, a.ModelID)

	maxSteps := a.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	hasEmaReply := false
	var emaReply *models.StructuredReply

	finish := func(ok bool, msg string, err error) RunOutcome {
		emitter.RunFinished(ctx, ok, msg, err)
		return RunOutcome{
			RunID: runID, State: cm.State(), OK: ok, Msg: msg, Err: err,
			HasEmaReply: hasEmaReply, EmaReply: emaReply,
		}
	}

	for step := 1; step <= maxSteps; step++ {
		emitter.SetStep(step)

		// 1. abort checkpoint
		if ctx.Err() != nil {
			return finish(false, "aborted", ErrAborted)
		}

		emitter.StepStarted(ctx)

		// 2. context manager summarisation, no-op under the token limit
		cm.Summarise(ctx)

		// 3. LLM turn
		resp, err := a.LLM.Generate(ctx, cm.History(), cm.tools, cm.systemPrompt, NewCancelToken(ctx))
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return finish(false, "aborted", ErrAborted)
			}
			var retryErr *RetryExhaustedError
			if errors.As(err, &retryErr) {
				return finish(false, retryErr.Error(), retryErr)
			}
			return finish(false, err.Error(), &AdapterError{Cause: err})
		}
		emitter.LLMResponseReceived(ctx, resp)

		// 4. append Model message
		cm.AddModel(resp)

		// 5. no tool calls is a normal terminal
		if len(resp.Message.ToolCalls) == 0 {
			return finish(true, resp.FinishReason, nil)
		}

		// 6. run each requested tool call, in order
		for _, call := range resp.Message.ToolCalls {
			if ctx.Err() != nil {
				return finish(false, "aborted", ErrAborted)
			}

			emitter.ToolCallStarted(ctx, call.ID, call.Name)
			result := a.Tools.Execute(ctx, call)

			if models.IsStructuredReplyTool(call.Name) && result.Success {
				if reply, parseErr := models.ParseStructuredReply(result.Content); parseErr == nil {
					emitter.EmaReplyReceived(ctx, reply)
					hasEmaReply = true
					emaReply = &reply
					emitter.ToolCallFinished(ctx, call.ID, call.Name, result)
					cm.AddTool(models.ToolResult{Success: true}, call.Name, call.ID)
					continue
				}
			}

			emitter.ToolCallFinished(ctx, call.ID, call.Name, result)
			cm.AddTool(result, call.Name, call.ID)
		}
		// 7. step increments via the for loop
	}

	return finish(false, fmt.Sprintf("Task couldn't be completed after %d steps", maxSteps), nil)
}
