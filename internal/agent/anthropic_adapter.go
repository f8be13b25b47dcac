package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/actorcore/internal/backoff"
	"github.com/haasonsaas/actorcore/pkg/models"
)

// AnthropicAdapter implements LLMAdapter (spec.md §4.6) against Anthropic's
// Messages API using a single, non-streaming call per turn — this module
// never delivers partial tokens, matching the Non-goal that rules out
// streaming token delivery.
type AnthropicAdapter struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	maxAttempts  int
	backoffPolicy backoff.BackoffPolicy
	log          *slog.Logger
}

// AnthropicAdapterConfig configures an AnthropicAdapter.
type AnthropicAdapterConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	MaxAttempts int
	Logger      *slog.Logger
}

// NewAnthropicAdapter builds an AnthropicAdapter. Model defaults to
// claude-sonnet-4-20250514, MaxTokens to 4096, MaxAttempts to 3.
func NewAnthropicAdapter(cfg AnthropicAdapterConfig) (*AnthropicAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicAdapter{
		client:        anthropic.NewClient(opts...),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxAttempts:   cfg.MaxAttempts,
		backoffPolicy: backoff.DefaultPolicy(),
		log:           cfg.Logger,
	}, nil
}

// Name identifies this adapter for logging and metrics labels.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Generate implements LLMAdapter by translating messages/tools/systemPrompt
// into Anthropic's wire format (per the translation table in SPEC_FULL.md
// §6), calling the API with a bounded retry policy, and translating the
// response back into an LLMResponse.
func (a *AnthropicAdapter) Generate(ctx context.Context, messages []models.Message, tools []models.ToolSpec, systemPrompt string, cancel CancelToken) (models.LLMResponse, error) {
	params, err := a.buildParams(messages, tools, systemPrompt)
	if err != nil {
		return models.LLMResponse{}, &AdapterError{Cause: err}
	}

	msg, attempts, lastErr := a.callWithRetry(ctx, params)
	if lastErr != nil {
		if ctx.Err() != nil {
			return models.LLMResponse{}, ErrAborted
		}
		if attempts >= a.maxAttempts {
			return models.LLMResponse{}, &RetryExhaustedError{Attempts: attempts, LastError: lastErr}
		}
		return models.LLMResponse{}, &AdapterError{Cause: lastErr}
	}

	return a.translateResponse(msg), nil
}

// callWithRetry issues the API call, retrying retryable failures (rate
// limits, 5xx, transient network errors) up to maxAttempts with the
// configured backoff policy; a non-retryable error returns immediately.
func (a *AnthropicAdapter) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, int, error) {
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}
		msg, err := a.client.Messages.New(ctx, params)
		if err == nil {
			return msg, attempt, nil
		}
		lastErr = err
		if !a.isRetryable(err) {
			return nil, attempt, err
		}
		if attempt < a.maxAttempts {
			if sleepErr := backoff.SleepWithBackoff(ctx, a.backoffPolicy, attempt); sleepErr != nil {
				return nil, attempt, sleepErr
			}
		}
	}
	return nil, a.maxAttempts, lastErr
}

func (a *AnthropicAdapter) buildParams(messages []models.Message, tools []models.ToolSpec, systemPrompt string) (anthropic.MessageNewParams, error) {
	var converted []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case models.RoleUser:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))
		case models.RoleModel:
			var blocks []anthropic.ContentBlockParamUnion
			if text := m.Text(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Args, tc.Name))
			}
			converted = append(converted, anthropic.NewAssistantMessage(blocks...))
		case models.RoleTool:
			if m.Result == nil {
				continue
			}
			content := m.Result.Content
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, content, !m.Result.Success),
			))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  converted,
		MaxTokens: a.maxTokens,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: systemPrompt}}
	}
	if len(tools) > 0 {
		toolParams, err := a.convertTools(tools)
		if err != nil {
			return params, err
		}
		params.Tools = toolParams
	}
	return params, nil
}

func (a *AnthropicAdapter) convertTools(tools []models.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		p := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if p.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		p.OfTool.Description = anthropic.String(t.Description)
		result = append(result, p)
	}
	return result, nil
}

// translateResponse converts an Anthropic Message into an LLMResponse: text
// blocks become Content, tool_use blocks become ToolCalls, and a
// malformed/unparseable tool argument set becomes an empty object with a
// logged warning rather than a hard failure (spec.md §4.6).
func (a *AnthropicAdapter) translateResponse(msg *anthropic.Message) models.LLMResponse {
	var contents []models.Content
	var toolCalls []models.ToolCall

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			contents = append(contents, models.TextContent(b.Text))
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(b.Input, &args); err != nil {
				a.log.Warn("anthropic adapter: failed to parse tool arguments, using empty object",
					"tool", b.Name, "error", err)
				args = map[string]any{}
			}
			toolCalls = append(toolCalls, models.ToolCall{ID: b.ID, Name: b.Name, Args: args})
		}
	}

	return models.LLMResponse{
		Message:      models.NewModelMessage(contents, toolCalls),
		FinishReason: string(msg.StopReason),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
}

func (a *AnthropicAdapter) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused")
}
