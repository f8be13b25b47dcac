package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// stubAdapter is a scripted LLMAdapter for driving Agent/Actor runs without
// a network call. Each call to Generate consumes the next scripted response
// (or error) in order; calling past the end of the script panics, which
// surfaces as an immediate, obvious test failure.
type stubAdapter struct {
	mu        sync.Mutex
	responses []stubResponse
	calls     int
}

type stubResponse struct {
	resp models.LLMResponse
	err  error
}

func newStubAdapter(responses ...stubResponse) *stubAdapter {
	return &stubAdapter{responses: responses}
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Generate(_ context.Context, _ []models.Message, _ []models.ToolSpec, _ string, _ CancelToken) (models.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.responses) {
		panic("stubAdapter: ran out of scripted responses")
	}
	r := s.responses[s.calls]
	s.calls++
	return r.resp, r.err
}

func (s *stubAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// textResponse builds a terminal (no tool calls) LLMResponse.
func textResponse(text string) stubResponse {
	return stubResponse{resp: models.LLMResponse{
		Message:      models.NewModelMessage(models.TextContents(text), nil),
		FinishReason: "stop",
	}}
}

// toolCallResponse builds an LLMResponse requesting the given tool calls.
func toolCallResponse(calls ...models.ToolCall) stubResponse {
	return stubResponse{resp: models.LLMResponse{
		Message:      models.NewModelMessage(nil, calls),
		FinishReason: "tool_calls",
	}}
}

// stubTool is a scripted Tool for loop/registry tests.
type stubTool struct {
	name    string
	schema  []byte
	execute func(ctx context.Context, args map[string]any) (models.ToolResult, error)
}

func (t *stubTool) Name() string                       { return t.name }
func (t *stubTool) Description() string                { return "stub tool for tests" }
func (t *stubTool) Schema() json.RawMessage            { return json.RawMessage(t.schema) }
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	if t.execute != nil {
		return t.execute(ctx, args)
	}
	return models.NewToolSuccess("ok"), nil
}
