package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAgentEventRunFinishedRoundTrip(t *testing.T) {
	ev := AgentEvent{
		Version:  1,
		Type:     AgentEventRunFinished,
		Time:     time.Unix(0, 0).UTC(),
		Sequence: 1,
		RunID:    "run-1",
		RunFinished: &RunFinishedEventPayload{
			OK:  true,
			Msg: "stop",
		},
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded AgentEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != AgentEventRunFinished || decoded.RunFinished == nil || !decoded.RunFinished.OK {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

func TestAgentEventEmaReplyReceivedCarriesReply(t *testing.T) {
	reply := StructuredReply{
		Think:      "considering",
		Expression: ExpressionSmile,
		Action:     ActionWave,
		Response:   "Hi there!",
	}
	ev := AgentEvent{
		Type:             AgentEventEmaReplyReceived,
		EmaReplyReceived: &EmaReplyReceivedEventPayload{Reply: reply},
	}
	if ev.EmaReplyReceived.Reply.Response != "Hi there!" {
		t.Fatalf("unexpected payload: %+v", ev.EmaReplyReceived)
	}
}

func TestAgentEventTypesAreDistinct(t *testing.T) {
	seen := map[AgentEventType]bool{}
	for _, et := range []AgentEventType{
		AgentEventMessage,
		AgentEventRunFinished,
		AgentEventEmaReplyReceived,
		AgentEventStepStarted,
		AgentEventLLMResponseReceived,
		AgentEventToolCallStarted,
		AgentEventToolCallFinished,
		AgentEventSummarizeMessagesStarted,
		AgentEventSummarizeMessagesFinished,
		AgentEventTokenEstimationFallbacked,
	} {
		if seen[et] {
			t.Fatalf("duplicate event type %q", et)
		}
		seen[et] = true
	}
}
