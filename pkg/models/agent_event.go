package models

import "time"

// AgentEvent is the unified event emitted to the Event Bus by both Agent
// runs and Actor Worker lifecycle. A single stream drives subscribers,
// metrics, and logging alike.
//
// Design carried from the source project's event model: versioned and
// forward-compatible (add fields, don't rename/remove), a single Type
// discriminator with one non-nil payload, and a monotonic Sequence for
// ordering across goroutines.
type AgentEvent struct {
	Version  int            `json:"version"`
	Type     AgentEventType `json:"type"`
	Time     time.Time      `json:"time"`
	Sequence uint64         `json:"seq"`
	RunID    string         `json:"run_id,omitempty"`
	Step     int            `json:"step,omitempty"`

	Message           *MessageEventPayload           `json:"message,omitempty"`
	RunFinished       *RunFinishedEventPayload       `json:"run_finished,omitempty"`
	EmaReplyReceived  *EmaReplyReceivedEventPayload  `json:"ema_reply_received,omitempty"`
	LLMResponse       *LLMResponseEventPayload       `json:"llm_response,omitempty"`
	ToolCall          *ToolCallEventPayload          `json:"tool_call,omitempty"`
	Summarize         *SummarizeEventPayload         `json:"summarize,omitempty"`
	TokenEstimation   *TokenEstimationEventPayload   `json:"token_estimation,omitempty"`
}

// AgentEventType identifies the kind of AgentEvent.
type AgentEventType string

const (
	// AgentEventMessage is a plain text notification ("actor-side" in
	// spec.md §4.3's terminology).
	AgentEventMessage AgentEventType = "message"

	// AgentEventRunFinished is the sole terminal event of a run; exactly
	// one is emitted per run (spec.md §8 property 1).
	AgentEventRunFinished AgentEventType = "runFinished"

	// AgentEventEmaReplyReceived fires exactly once when the privileged
	// structured-reply tool succeeds.
	AgentEventEmaReplyReceived AgentEventType = "emaReplyReceived"

	// Diagnostic events, optional for subscribers to act on.
	AgentEventStepStarted                  AgentEventType = "stepStarted"
	AgentEventLLMResponseReceived           AgentEventType = "llmResponseReceived"
	AgentEventToolCallStarted               AgentEventType = "toolCallStarted"
	AgentEventToolCallFinished              AgentEventType = "toolCallFinished"
	AgentEventSummarizeMessagesStarted      AgentEventType = "summarizeMessagesStarted"
	AgentEventSummarizeMessagesFinished     AgentEventType = "summarizeMessagesFinished"
	AgentEventTokenEstimationFallbacked     AgentEventType = "tokenEstimationFallbacked"
)

// MessageEventPayload carries a plain text notification.
type MessageEventPayload struct {
	Content string `json:"content"`
}

// RunFinishedEventPayload is the Agent run's terminal outcome.
type RunFinishedEventPayload struct {
	OK    bool   `json:"ok"`
	Msg   string `json:"msg,omitempty"`
	Error string `json:"error,omitempty"`
}

// EmaReplyReceivedEventPayload carries the parsed structured reply.
type EmaReplyReceivedEventPayload struct {
	Reply StructuredReply `json:"reply"`
}

// LLMResponseEventPayload is a diagnostic snapshot of one LLM turn.
type LLMResponseEventPayload struct {
	FinishReason string `json:"finish_reason"`
	TotalTokens  int    `json:"total_tokens"`
	ToolCalls    int    `json:"tool_calls"`
}

// ToolCallEventPayload is a diagnostic snapshot of one tool invocation.
type ToolCallEventPayload struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SummarizeEventPayload marks the start/end of history summarisation.
type SummarizeEventPayload struct {
	RoundsSummarized int `json:"rounds_summarized,omitempty"`
	Fallback         bool `json:"fallback,omitempty"`
}

// TokenEstimationEventPayload marks a fallback to the chars/2.5 heuristic
// when no BPE-like tokeniser is available.
type TokenEstimationEventPayload struct {
	Reason string `json:"reason"`
}
