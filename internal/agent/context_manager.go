package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	ctxwindow "github.com/haasonsaas/actorcore/internal/context"
	"github.com/haasonsaas/actorcore/pkg/models"
)

// perMessageTokenOverhead approximates the token cost of role/formatting
// scaffolding the BPE tokeniser would charge per message.
const perMessageTokenOverhead = 4

// fallbackCharsPerToken is the spec-mandated fallback ratio used when no
// BPE-like tokeniser is available: chars/2.5, a more generous (higher
// token-per-char) estimate than a real tokeniser, so the Context Manager
// triggers summarisation a little early rather than late.
const fallbackCharsPerToken = 2.5

// SummaryProvider is the narrow LLM capability the Context Manager needs to
// summarise one execution round. It is a subset of LLMAdapter so tests can
// supply a stub without constructing a full adapter.
type SummaryProvider interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// ContextManager holds the mutable conversation state for one Agent run
// (spec.md §4.1). It owns the message history and the token-estimate /
// summarisation bookkeeping that decides when that history needs
// compacting.
type ContextManager struct {
	systemPrompt string
	messages     []models.Message
	tools        []models.ToolSpec

	tokenLimit int
	summarizer SummaryProvider
	emitter    *EventEmitter

	lastTotalTokens int
	skipNextTrigger bool

	// modelWindow, when set via a non-empty modelID, cross-checks
	// ShouldSummarize against the model's real window size instead of
	// relying on tokenLimit alone.
	modelWindow *ctxwindow.Window
}

// NewContextManager builds a ContextManager seeded from an AgentState.
// modelID is optional (variadic so existing callers are unaffected); when
// given, it is looked up in internal/context's known model table to derive
// a second summarisation trigger independent of tokenLimit.
func NewContextManager(state models.AgentState, tokenLimit int, summarizer SummaryProvider, emitter *EventEmitter, modelID ...string) *ContextManager {
	cm := &ContextManager{
		systemPrompt: state.SystemPrompt,
		messages:     append([]models.Message(nil), state.Messages...),
		tools:        state.Tools,
		tokenLimit:   tokenLimit,
		summarizer:   summarizer,
		emitter:      emitter,
	}
	if len(modelID) > 0 && modelID[0] != "" {
		cm.modelWindow = ctxwindow.NewWindowForModel(modelID[0])
	}
	return cm
}

// AddUser appends a User message.
func (c *ContextManager) AddUser(contents []models.Content) {
	c.messages = append(c.messages, models.NewUserMessage(contents))
}

// AddModel appends the Model message from an LLMResponse and records its
// reported TotalTokens for the next summarisation check.
func (c *ContextManager) AddModel(resp models.LLMResponse) {
	c.messages = append(c.messages, resp.Message)
	c.lastTotalTokens = resp.TotalTokens
	c.skipNextTrigger = false
}

// AddTool appends a Tool message answering one ToolCall.
func (c *ContextManager) AddTool(result models.ToolResult, name, callID string) {
	c.messages = append(c.messages, models.NewToolMessage(callID, name, result))
}

// History returns a shallow snapshot of the current message history.
func (c *ContextManager) History() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// State rebuilds an AgentState snapshot from the current history.
func (c *ContextManager) State() models.AgentState {
	return models.AgentState{
		SystemPrompt: c.systemPrompt,
		Messages:     c.History(),
		Tools:        c.tools,
	}
}

// EstimateTokens estimates the token cost of the current history: a
// BPE-like per-character estimate over text parts, plus per-message
// overhead, plus the JSON-serialised size of tool calls/results.
func (c *ContextManager) EstimateTokens(ctx context.Context) int {
	total := 0
	for _, m := range c.messages {
		total += perMessageTokenOverhead
		total += estimateTextTokens(m.Text())
		for _, tc := range m.ToolCalls {
			if b, err := json.Marshal(tc); err == nil {
				total += estimateTextTokens(string(b))
			}
		}
		if m.Result != nil {
			if b, err := json.Marshal(m.Result); err == nil {
				total += estimateTextTokens(string(b))
			}
		}
	}
	return total
}

// estimateTextTokens applies the chars/2.5 fallback heuristic. A real
// implementation would prefer a provider-reported BPE count; this estimate
// only drives the local "do we need to summarise before calling the LLM"
// check, not billing.
func estimateTextTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return 0
	}
	tokens := int(float64(chars) / fallbackCharsPerToken)
	if tokens == 0 {
		return 1
	}
	return tokens
}

// ShouldSummarize reports whether either the local estimate or the
// adapter-reported TotalTokens from the last turn exceeds tokenLimit. The
// skip-once flag set by a prior Summarise() call suppresses a second
// trigger until a fresh TotalTokens is observed from AddModel.
func (c *ContextManager) ShouldSummarize(ctx context.Context) bool {
	if c.skipNextTrigger {
		return false
	}
	estimated := c.EstimateTokens(ctx)
	if c.modelWindow != nil {
		c.modelWindow.SetUsed(estimated)
		if c.modelWindow.Info().ShouldBlock() {
			return true
		}
	}
	if c.tokenLimit <= 0 {
		return false
	}
	if c.lastTotalTokens > c.tokenLimit {
		return true
	}
	return estimated > c.tokenLimit
}

// Summarise implements the history-summarisation algorithm of spec.md §4.1:
// walk the user messages in order, summarising each execution round (the
// messages strictly between one user message and the next) via the LLM,
// and replacing the round with a synthetic "[Assistant Execution Summary]"
// user message. The system prompt is untouched; it lives outside history.
func (c *ContextManager) Summarise(ctx context.Context) {
	if !c.ShouldSummarize(ctx) {
		return
	}
	if c.emitter != nil {
		c.emitter.SummarizeStarted(ctx)
	}

	userIdx := make([]int, 0)
	for i, m := range c.messages {
		if m.Role == models.RoleUser {
			userIdx = append(userIdx, i)
		}
	}

	newHistory := make([]models.Message, 0, len(c.messages))
	rounds := 0
	fellBack := false

	for ui, idx := range userIdx {
		newHistory = append(newHistory, c.messages[idx])

		end := len(c.messages)
		if ui+1 < len(userIdx) {
			end = userIdx[ui+1]
		}
		round := c.messages[idx+1 : end]
		if len(round) == 0 {
			continue
		}

		rounds++
		summaryText, err := c.summariseRound(ctx, round)
		if err != nil {
			fellBack = true
			summaryText = rawJoinRound(round)
		}
		newHistory = append(newHistory, models.NewUserMessage(models.TextContents(
			"[Assistant Execution Summary] "+summaryText,
		)))
	}

	c.messages = newHistory
	c.skipNextTrigger = true

	if c.emitter != nil {
		c.emitter.SummarizeFinished(ctx, rounds, fellBack)
	}
}

func (c *ContextManager) summariseRound(ctx context.Context, round []models.Message) (string, error) {
	if c.summarizer == nil {
		return "", fmt.Errorf("no summary provider configured")
	}
	prompt := BuildSummarizationPrompt(round)
	return c.summarizer.Summarize(ctx, prompt)
}

// BuildSummarizationPrompt renders the meta-prompt sent to the LLM to
// summarise one execution round: a concise summary focused on what was
// done and which tools were called, bounded to roughly 1000 words.
func BuildSummarizationPrompt(round []models.Message) string {
	var b strings.Builder
	b.WriteString("Summarize the following execution round concisely (under 1000 words), ")
	b.WriteString("focusing on what was done and which tools were called. ")
	b.WriteString("Respond in the same language as the conversation.\n\n")

	for _, m := range round {
		switch m.Role {
		case models.RoleModel:
			if text := m.Text(); text != "" {
				fmt.Fprintf(&b, "Assistant: %s\n", text)
			}
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "Tool call: %s(%v)\n", tc.Name, tc.Args)
			}
		case models.RoleTool:
			if m.Result != nil {
				if m.Result.Success {
					fmt.Fprintf(&b, "Tool result (%s): %s\n", m.ToolName, m.Result.Content)
				} else {
					fmt.Fprintf(&b, "Tool result (%s): error: %s\n", m.ToolName, m.Result.Error)
				}
			}
		case models.RoleUser:
			if text := m.Text(); text != "" {
				fmt.Fprintf(&b, "User: %s\n", text)
			}
		}
	}
	return b.String()
}

// rawJoinRound is the never-drop-history fallback when the summarising LLM
// call fails: a raw textual join of the round.
func rawJoinRound(round []models.Message) string {
	var parts []string
	for _, m := range round {
		switch m.Role {
		case models.RoleModel:
			if text := m.Text(); text != "" {
				parts = append(parts, "Assistant: "+text)
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, fmt.Sprintf("Tool call: %s", tc.Name))
			}
		case models.RoleTool:
			if m.Result != nil {
				parts = append(parts, fmt.Sprintf("Tool result (%s): %s", m.ToolName, m.Result.Content))
			}
		case models.RoleUser:
			if text := m.Text(); text != "" {
				parts = append(parts, "User: "+text)
			}
		}
	}
	return strings.Join(parts, "\n")
}
