// Package models defines the core data types shared by the actor/agent
// runtime: conversation content, tool calls and results, and the state an
// Agent owns for the duration of one run.
package models

import "fmt"

// ContentType identifies the kind of a Content item. Text is the only kind
// today; the type is kept open for non-text content in the future.
type ContentType string

// ContentText is the sole ContentType in use.
const ContentText ContentType = "text"

// Content is a single tagged item of message content.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text"`
}

// TextContent builds a single text Content item.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// TextContents builds a Content slice from one or more strings.
func TextContents(texts ...string) []Content {
	out := make([]Content, len(texts))
	for i, t := range texts {
		out[i] = TextContent(t)
	}
	return out
}

// Role identifies which party authored a Message.
type Role string

const (
	// RoleUser is input from the human/actor-input side.
	RoleUser Role = "user"
	// RoleModel is an assistant turn, possibly carrying tool calls.
	RoleModel Role = "model"
	// RoleTool is a tool's result delivered back into history.
	RoleTool Role = "tool"
	// RoleSystem never appears in stored history; the system prompt is
	// supplied to the LLM adapter as a separate field.
	RoleSystem Role = "system"
)

// ToolCall is one LLM-requested tool invocation. ID uniquely identifies the
// call within the turn that produced it; Args conforms to the named tool's
// JSON schema.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult is the outcome of executing a ToolCall.
//
// Invariant: Success implies Content is present; failure implies Error is
// present. Use NewToolSuccess/NewToolFailure to construct a valid value
// rather than building the struct by hand.
type ToolResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewToolSuccess builds a successful ToolResult.
func NewToolSuccess(content string) ToolResult {
	return ToolResult{Success: true, Content: content}
}

// NewToolFailure builds a failed ToolResult.
func NewToolFailure(err string) ToolResult {
	return ToolResult{Success: false, Error: err}
}

// Valid reports whether the result satisfies the success/content/error
// invariant.
func (r ToolResult) Valid() bool {
	if r.Success {
		return r.Content != "" && r.Error == ""
	}
	return r.Error != ""
}

// Message is a tagged union over the four roles. Only the fields relevant
// to Role are meaningful; constructors enforce this rather than exposing a
// bare struct literal as the primary API.
type Message struct {
	Role Role `json:"role"`

	// Contents holds text for User and Model messages.
	Contents []Content `json:"contents,omitempty"`

	// ToolCalls is set on Model messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID, ToolName and Result are set on Tool messages.
	ToolCallID string      `json:"id,omitempty"`
	ToolName   string      `json:"name,omitempty"`
	Result     *ToolResult `json:"result,omitempty"`
}

// NewUserMessage builds a User message from text content.
func NewUserMessage(contents []Content) Message {
	return Message{Role: RoleUser, Contents: contents}
}

// NewModelMessage builds a Model (assistant) message, optionally carrying
// tool calls the LLM requested.
func NewModelMessage(contents []Content, toolCalls []ToolCall) Message {
	return Message{Role: RoleModel, Contents: contents, ToolCalls: toolCalls}
}

// NewToolMessage builds a Tool message answering one ToolCall.
func NewToolMessage(callID, name string, result ToolResult) Message {
	return Message{Role: RoleTool, ToolCallID: callID, ToolName: name, Result: &result}
}

// Text concatenates the text parts of a message's Contents.
func (m Message) Text() string {
	var out string
	for i, c := range m.Contents {
		if i > 0 {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

// LLMResponse is what the LLM Adapter contract returns from one generate
// call. TotalTokens is the provider's running cumulative token count for the
// conversation and drives history summarisation.
type LLMResponse struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
	TotalTokens  int     `json:"total_tokens"`
}

// ToolSpec is the wire shape of a tool as presented to the LLM: name,
// description, and JSON-schema parameters. It carries no executable behavior
// — that lives behind the Tool interface in package agent.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  []byte `json:"parameters"` // raw JSON Schema
}

// AgentState is the mutable conversation state owned exclusively by one
// Agent during a run. The Actor Worker may cache a reference across
// preemption for resume, but must not mutate it while a run is active.
type AgentState struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSpec
}

// ActorIdentity uniquely names one actor. One worker instance exists per
// identity; all runs for that actor are serialised against it.
type ActorIdentity struct {
	UserID  int
	ActorID int
}

// String renders the identity for logging/metric labels.
func (a ActorIdentity) String() string {
	return fmt.Sprintf("%d:%d", a.UserID, a.ActorID)
}
