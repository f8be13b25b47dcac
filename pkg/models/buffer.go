package models

import "time"

// BufferMessage is one append-only, persisted log entry used both for
// system-prompt injection (the last N entries rendered into
// "{MEMORY_BUFFER}") and as the durable transcript record.
//
// Message wraps either a plain user string or a StructuredReply; exactly
// one of Text/Reply is set.
type BufferMessage struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Time    int64     `json:"time"` // unix seconds
	Text    string    `json:"text,omitempty"`
	Reply   *EmaMessage `json:"reply,omitempty"`
}

// EmaMessage wraps a StructuredReply as stored in a BufferMessage.
type EmaMessage struct {
	Reply StructuredReply `json:"reply"`
}

// NewUserBufferMessage builds a BufferMessage for an inbound user input.
func NewUserBufferMessage(id int64, name, text string, at time.Time) BufferMessage {
	return BufferMessage{ID: id, Name: name, Time: at.Unix(), Text: text}
}

// NewReplyBufferMessage builds a BufferMessage for an emitted structured
// reply.
func NewReplyBufferMessage(id int64, name string, reply StructuredReply, at time.Time) BufferMessage {
	return BufferMessage{ID: id, Name: name, Time: at.Unix(), Reply: &EmaMessage{Reply: reply}}
}

// DisplayText renders the entry's human-readable payload, used by the
// system-prompt buffer injector: a structured reply renders its Response
// field, a plain entry renders its Text.
func (b BufferMessage) DisplayText() string {
	if b.Reply != nil {
		return b.Reply.Reply.Response
	}
	return b.Text
}

// Role returns "user" for plain entries and "assistant" for structured
// replies, used by the buffer-injection line format ([role:X]).
func (b BufferMessage) Role() string {
	if b.Reply != nil {
		return "assistant"
	}
	return "user"
}
