package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// StructuredReplyTool is the privileged tool the Agent main loop intercepts
// at step 6e (spec.md §4.2): a successful call yields an emaReplyReceived
// event and its Tool message is appended with its content nulled out,
// rather than becoming visible conversation history.
//
// Execute itself only validates and echoes the structured reply back as
// JSON; the interception and event emission live in the main loop, which is
// the only place with access to the run's EventEmitter.
type StructuredReplyTool struct {
	name   string
	schema []byte
}

// NewStructuredReplyTool builds the privileged tool under one of the two
// recognized names ("ema_reply" or "final_reply").
func NewStructuredReplyTool(name string) (*StructuredReplyTool, error) {
	if !models.IsStructuredReplyTool(name) {
		return nil, fmt.Errorf("not a structured-reply tool name: %s", name)
	}
	return &StructuredReplyTool{name: name, schema: []byte(models.StructuredReplySchema)}, nil
}

func (t *StructuredReplyTool) Name() string        { return t.name }
func (t *StructuredReplyTool) Description() string  { return structuredReplyDescription }
func (t *StructuredReplyTool) Schema() json.RawMessage { return t.schema }

const structuredReplyDescription = "Deliver the final structured reply for this turn: " +
	"an internal thought, a facial expression, a physical action, and the response text. " +
	"Calling this tool ends the turn."

// Execute validates args against the fixed schema and re-serialises them as
// the ToolResult content the main loop will parse back into a
// models.StructuredReply.
func (t *StructuredReplyTool) Execute(_ context.Context, args map[string]any) (models.ToolResult, error) {
	if err := validateArgs(t.name, t.schema, args); err != nil {
		return models.NewToolFailure(err.Error()), nil
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return models.NewToolFailure(fmt.Sprintf("%s: %s", t.name, err.Error())), nil
	}

	if _, err := models.ParseStructuredReply(string(payload)); err != nil {
		return models.NewToolFailure(err.Error()), nil
	}

	return models.NewToolSuccess(string(payload)), nil
}
