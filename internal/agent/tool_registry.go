package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/haasonsaas/actorcore/internal/tools/policy"
	"github.com/haasonsaas/actorcore/pkg/models"
)

func panicStack() string {
	return string(debug.Stack())
}

// maxToolAttempts bounds how many times Execute retries a single tool call
// whose returned error classifies as retryable (timeout/network/rate-limit).
// A non-retryable classification, or exhausting this budget, surfaces the
// failure on the first or last attempt's error immediately.
const maxToolAttempts = 3

// ToolRegistry holds the tools available to an Agent run and resolves a
// requested name to an executable Tool, applying the Tool execution policy
// (spec.md §4.7, SUPPLEMENTED FEATURES) before a call reaches the main loop.
type ToolRegistry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	resolver *policy.Resolver
	policy   *policy.Policy
}

// NewToolRegistry creates an empty registry. A nil resolver/policy disables
// filtering: every registered tool is exposed.
func NewToolRegistry(resolver *policy.Resolver, toolPolicy *policy.Policy) *ToolRegistry {
	return &ToolRegistry{
		tools:    make(map[string]Tool),
		resolver: resolver,
		policy:   toolPolicy,
	}
}

// Register adds a tool. Re-registering a name replaces it in place without
// disturbing its position in registration order.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Lookup finds a tool by name among those the policy allows. Returns false
// for both an unknown name and a name the policy denies — both surface to
// the main loop as "unknown tool" per spec.md §4.2 step 6b.
func (r *ToolRegistry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	if r.resolver != nil && r.policy != nil && !r.resolver.IsAllowed(r.policy, name) {
		return nil, false
	}
	return tool, true
}

// Specs returns the ToolSpec list, in registration order, for every tool the
// policy allows — the set exposed to the LLM for one run.
func (r *ToolRegistry) Specs() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		if r.resolver != nil && r.policy != nil && !r.resolver.IsAllowed(r.policy, name) {
			continue
		}
		specs = append(specs, Spec(r.tools[name]))
	}
	return specs
}

// Execute runs a call, returning a ToolResult (never an error): an unknown
// or policy-denied name produces a failed ToolResult; a panic or returned
// error from Execute is converted to a failed ToolResult carrying the
// panic/error message and, for a panic, a stack trace — mirroring spec.md
// §4.2 step 6d's "<name>: <message>\n\n<stack>" shape.
func (r *ToolRegistry) Execute(ctx context.Context, call models.ToolCall) (result models.ToolResult) {
	tool, ok := r.Lookup(call.Name)
	if !ok {
		return models.NewToolFailure(UnknownToolError(call.Name).Error())
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = models.NewToolFailure(fmt.Sprintf("%s: %v\n\n%s", call.Name, rec, panicStack()))
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= maxToolAttempts; attempt++ {
		res, err := tool.Execute(ctx, call.Args)
		if err == nil {
			return res
		}
		lastErr = err
		classified := NewToolError(call.Name, err).WithAttempts(attempt)
		if !classified.Retryable || attempt == maxToolAttempts || ctx.Err() != nil {
			break
		}
	}
	return models.NewToolFailure(fmt.Sprintf("%s: %s", call.Name, lastErr.Error()))
}

// OrderedArgs maps a tool call's argument object into a positional slice,
// ordered by the tool's JSON-schema "properties" key order when present, or
// by the argument object's own key order otherwise. This quirk is retained
// deliberately (spec.md §9 design notes) rather than normalised away.
func OrderedArgs(schemaPropertyOrder []string, args map[string]any) []any {
	if len(schemaPropertyOrder) > 0 {
		out := make([]any, 0, len(schemaPropertyOrder))
		for _, key := range schemaPropertyOrder {
			out = append(out, args[key])
		}
		return out
	}
	out := make([]any, 0, len(args))
	for _, v := range args {
		out = append(out, v)
	}
	return out
}
