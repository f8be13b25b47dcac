package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/actorcore/pkg/models"
)

func TestContextManager_AddAndHistory(t *testing.T) {
	cm := NewContextManager(models.AgentState{SystemPrompt: "you are helpful"}, 0, nil, nil)

	cm.AddUser(models.TextContents("hello"))
	cm.AddModel(models.LLMResponse{Message: models.NewModelMessage(models.TextContents("hi"), nil), TotalTokens: 10})
	cm.AddTool(models.NewToolSuccess("42"), "calc", "call-1")

	history := cm.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[1].Role != models.RoleModel || history[2].Role != models.RoleTool {
		t.Errorf("unexpected role sequence: %v, %v, %v", history[0].Role, history[1].Role, history[2].Role)
	}
}

func TestContextManager_HistoryIsACopy(t *testing.T) {
	cm := NewContextManager(models.AgentState{}, 0, nil, nil)
	cm.AddUser(models.TextContents("hi"))

	h := cm.History()
	h[0] = models.NewUserMessage(models.TextContents("tampered"))

	if cm.History()[0].Text() == "tampered" {
		t.Error("History() should return an independent copy of the internal state")
	}
}

func TestContextManager_ShouldSummarizeRespectsTokenLimit(t *testing.T) {
	cm := NewContextManager(models.AgentState{}, 0, nil, nil)
	cm.AddUser(models.TextContents(strings.Repeat("x", 1000)))
	if cm.ShouldSummarize(context.Background()) {
		t.Error("tokenLimit <= 0 should disable summarisation entirely")
	}

	cm2 := NewContextManager(models.AgentState{}, 10, nil, nil)
	cm2.AddUser(models.TextContents(strings.Repeat("x", 1000)))
	if !cm2.ShouldSummarize(context.Background()) {
		t.Error("a long history past the token limit should trigger summarisation")
	}
}

func TestContextManager_ShouldSummarizeUsesAdapterReportedTokens(t *testing.T) {
	cm := NewContextManager(models.AgentState{}, 100, nil, nil)
	cm.AddUser(models.TextContents("hi"))
	cm.AddModel(models.LLMResponse{Message: models.NewModelMessage(models.TextContents("hello"), nil), TotalTokens: 1000})

	if !cm.ShouldSummarize(context.Background()) {
		t.Error("a high adapter-reported TotalTokens should trigger summarisation even with short local text")
	}
}

type stubSummaryProvider struct {
	out string
	err error
}

func (s stubSummaryProvider) Summarize(context.Context, string) (string, error) {
	return s.out, s.err
}

func TestContextManager_SummariseReplacesRoundsWithSyntheticUserMessages(t *testing.T) {
	cm := NewContextManager(models.AgentState{}, 1, stubSummaryProvider{out: "did stuff"}, nil)
	cm.AddUser(models.TextContents("do the thing"))
	cm.AddModel(models.LLMResponse{
		Message: models.NewModelMessage(nil, []models.ToolCall{{ID: "c1", Name: "tool"}}),
	})
	cm.AddTool(models.NewToolSuccess("done"), "tool", "c1")
	cm.AddModel(models.LLMResponse{Message: models.NewModelMessage(models.TextContents("all done"), nil), TotalTokens: 1000})

	cm.Summarise(context.Background())

	history := cm.History()
	if len(history) != 2 {
		t.Fatalf("expected 1 user message + 1 synthetic summary, got %d messages", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Text() != "do the thing" {
		t.Errorf("original user message should survive untouched, got %+v", history[0])
	}
	if history[1].Role != models.RoleUser || !strings.HasPrefix(history[1].Text(), "[Assistant Execution Summary]") {
		t.Errorf("round should be replaced with a synthetic summary message, got %+v", history[1])
	}
	if !strings.Contains(history[1].Text(), "did stuff") {
		t.Errorf("synthetic message should carry the summariser's output, got %q", history[1].Text())
	}
}

func TestContextManager_SummariseFallsBackToRawJoinOnSummarizerFailure(t *testing.T) {
	cm := NewContextManager(models.AgentState{}, 1, stubSummaryProvider{err: errors.New("llm down")}, nil)
	cm.AddUser(models.TextContents("do the thing"))
	cm.AddModel(models.LLMResponse{Message: models.NewModelMessage(models.TextContents("working on it"), nil), TotalTokens: 1000})

	cm.Summarise(context.Background())

	history := cm.History()
	if len(history) != 2 {
		t.Fatalf("expected the round to still be collapsed into one message, got %d", len(history))
	}
	if !strings.Contains(history[1].Text(), "working on it") {
		t.Errorf("raw-join fallback should preserve the round's content, got %q", history[1].Text())
	}
}

func TestContextManager_SummariseIsNoopUnderLimit(t *testing.T) {
	cm := NewContextManager(models.AgentState{}, 100_000, stubSummaryProvider{out: "x"}, nil)
	cm.AddUser(models.TextContents("hi"))
	cm.AddModel(models.LLMResponse{Message: models.NewModelMessage(models.TextContents("hello"), nil)})

	before := cm.History()
	cm.Summarise(context.Background())
	after := cm.History()

	if len(before) != len(after) {
		t.Errorf("summarisation under the token limit should be a no-op, history changed from %d to %d messages", len(before), len(after))
	}
}

func TestContextManager_SummariseSkipsOnceAfterRunning(t *testing.T) {
	cm := NewContextManager(models.AgentState{}, 1, stubSummaryProvider{out: "x"}, nil)
	cm.AddUser(models.TextContents("do it"))
	cm.AddModel(models.LLMResponse{Message: models.NewModelMessage(models.TextContents("ok"), nil), TotalTokens: 1000})

	cm.Summarise(context.Background())
	afterFirst := cm.History()

	cm.Summarise(context.Background()) // skipNextTrigger should suppress this one
	afterSecond := cm.History()

	if len(afterFirst) != len(afterSecond) {
		t.Error("a second Summarise call before a new AddModel should be a no-op")
	}
}

func TestEstimateTextTokens_EmptyStringIsZero(t *testing.T) {
	if got := estimateTextTokens(""); got != 0 {
		t.Errorf("estimateTextTokens(\"\") = %d, want 0", got)
	}
}

func TestEstimateTextTokens_NonEmptyIsAtLeastOne(t *testing.T) {
	if got := estimateTextTokens("a"); got < 1 {
		t.Errorf("estimateTextTokens(\"a\") = %d, want >= 1", got)
	}
}
