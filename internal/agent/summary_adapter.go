package agent

import (
	"context"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// AdapterSummaryProvider bridges an LLMAdapter into the narrower
// SummaryProvider the Context Manager needs for execution-round
// summarisation, issuing a single-turn, tool-free generate call.
type AdapterSummaryProvider struct {
	Adapter LLMAdapter
}

// Summarize sends prompt as the sole user message with no tools and no
// system prompt, returning the model's text reply.
func (s AdapterSummaryProvider) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := s.Adapter.Generate(
		ctx,
		[]models.Message{models.NewUserMessage(models.TextContents(prompt))},
		nil,
		"",
		NewCancelToken(ctx),
	)
	if err != nil {
		return "", err
	}
	return resp.Message.Text(), nil
}
