package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// CancelToken is passed to an LLMAdapter.Generate call and to tool-aware
// callers that need to observe cooperative cancellation. It is a thin
// wrapper around a context so adapters can check IsCancelled without
// depending on the Agent package's internal abort bookkeeping.
type CancelToken struct {
	ctx context.Context
}

// NewCancelToken wraps a context as a CancelToken.
func NewCancelToken(ctx context.Context) CancelToken { return CancelToken{ctx: ctx} }

// IsCancelled reports whether the underlying context has been cancelled.
func (t CancelToken) IsCancelled() bool {
	if t.ctx == nil {
		return false
	}
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns the underlying context's done channel, or nil if there is
// none.
func (t CancelToken) Done() <-chan struct{} {
	if t.ctx == nil {
		return nil
	}
	return t.ctx.Done()
}

// LLMAdapter is the one-call contract the Agent main loop depends on:
//
//	generate(messages, tools?, systemPrompt?, cancelToken?) -> LLMResponse
//
// Implementations translate the internal Message/ToolCall/ToolResult shapes
// into a provider's wire format and back (see the translation table in
// SPEC_FULL.md §6), wrap the provider call with a retry policy, and
// propagate cancellation so the Agent main loop observes it as the cancel
// token firing. A response carrying no tool calls is a normal terminal, not
// an error.
type LLMAdapter interface {
	Generate(ctx context.Context, messages []models.Message, tools []models.ToolSpec, systemPrompt string, cancel CancelToken) (models.LLMResponse, error)

	// Name identifies the adapter for logging and metrics labels.
	Name() string
}

// Tool is the executable contract behind a models.ToolSpec: name,
// description, JSON-schema parameters, and an execute function. Tools are
// free to block; per spec.md §4.7 they do not receive cancellation today.
type Tool interface {
	Name() string
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with its JSON-schema-validated arguments and
	// returns a ToolResult. Implementations should prefer returning a
	// failed ToolResult over an error; a returned error is treated by the
	// caller exactly like a panic recovered from Execute (spec.md §4.2
	// step 6d).
	Execute(ctx context.Context, args map[string]any) (models.ToolResult, error)
}

// Spec returns the wire-level models.ToolSpec for a Tool.
func Spec(t Tool) models.ToolSpec {
	return models.ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}
