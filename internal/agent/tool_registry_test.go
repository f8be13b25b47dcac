package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/actorcore/internal/tools/policy"
	"github.com/haasonsaas/actorcore/pkg/models"
)

func TestToolRegistry_RegisterAndLookup(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	r.Register(&stubTool{name: "echo"})

	tool, ok := r.Lookup("echo")
	if !ok || tool.Name() != "echo" {
		t.Fatalf("expected to find registered tool echo")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("unregistered tool should not be found")
	}
}

func TestToolRegistry_SpecsPreservesRegistrationOrder(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	r.Register(&stubTool{name: "b"})
	r.Register(&stubTool{name: "a"})
	r.Register(&stubTool{name: "c"})

	specs := r.Specs()
	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	want := []string{"b", "a", "c"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Specs() order = %v, want %v", names, want)
	}
}

func TestToolRegistry_PolicyDeniesTool(t *testing.T) {
	resolver := policy.NewResolver()
	pol := policy.NewPolicy(policy.ProfileFull).WithDeny("exec")

	r := NewToolRegistry(resolver, pol)
	r.Register(&stubTool{name: "exec"})
	r.Register(&stubTool{name: "read"})

	if _, ok := r.Lookup("exec"); ok {
		t.Error("denied tool should not be looked up")
	}
	if _, ok := r.Lookup("read"); !ok {
		t.Error("non-denied tool under ProfileFull should be allowed")
	}

	specs := r.Specs()
	if len(specs) != 1 || specs[0].Name != "read" {
		t.Errorf("Specs() should exclude denied tools, got %+v", specs)
	}
}

func TestToolRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	result := r.Execute(context.Background(), models.ToolCall{Name: "ghost"})

	if result.Success {
		t.Fatal("executing an unknown tool should fail")
	}
	if !strings.Contains(result.Error, "ghost") {
		t.Errorf("error should name the unknown tool, got %q", result.Error)
	}
}

func TestToolRegistry_ExecuteConvertsReturnedErrorToFailure(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	r.Register(&stubTool{name: "boom", execute: func(context.Context, map[string]any) (models.ToolResult, error) {
		return models.ToolResult{}, errors.New("disk full")
	}})

	result := r.Execute(context.Background(), models.ToolCall{Name: "boom"})
	if result.Success {
		t.Fatal("an error return should convert to a failed ToolResult")
	}
	if !strings.Contains(result.Error, "disk full") {
		t.Errorf("error should carry the underlying cause, got %q", result.Error)
	}
}

func TestToolRegistry_ExecuteRecoversPanics(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	r.Register(&stubTool{name: "panicky", execute: func(context.Context, map[string]any) (models.ToolResult, error) {
		panic("kaboom")
	}})

	result := r.Execute(context.Background(), models.ToolCall{Name: "panicky"})
	if result.Success {
		t.Fatal("a panicking tool should convert to a failed ToolResult")
	}
	if !strings.Contains(result.Error, "kaboom") {
		t.Errorf("error should carry the panic value, got %q", result.Error)
	}
}

func TestToolRegistry_ExecuteSuccess(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	r.Register(&stubTool{name: "ok"})

	result := r.Execute(context.Background(), models.ToolCall{Name: "ok"})
	if !result.Success || result.Content != "ok" {
		t.Errorf("result = %+v, want success content=ok", result)
	}
}

func TestToolRegistry_ExecuteRetriesClassifiedRetryableErrors(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	var calls int
	r.Register(&stubTool{name: "flaky", execute: func(context.Context, map[string]any) (models.ToolResult, error) {
		calls++
		if calls < maxToolAttempts {
			return models.ToolResult{}, errors.New("connection refused")
		}
		return models.NewToolSuccess("recovered"), nil
	}})

	result := r.Execute(context.Background(), models.ToolCall{Name: "flaky"})
	if !result.Success || result.Content != "recovered" {
		t.Errorf("result = %+v, want success after retrying a retryable error", result)
	}
	if calls != maxToolAttempts {
		t.Errorf("calls = %d, want %d attempts", calls, maxToolAttempts)
	}
}

func TestToolRegistry_ExecuteDoesNotRetryNonRetryableErrors(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	var calls int
	r.Register(&stubTool{name: "boom", execute: func(context.Context, map[string]any) (models.ToolResult, error) {
		calls++
		return models.ToolResult{}, errors.New("invalid argument")
	}})

	result := r.Execute(context.Background(), models.ToolCall{Name: "boom"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable errors should not be retried)", calls)
	}
}

func TestOrderedArgs_UsesSchemaOrderWhenPresent(t *testing.T) {
	args := map[string]any{"b": 2, "a": 1}
	got := OrderedArgs([]string{"a", "b"}, args)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("OrderedArgs = %v, want [1 2]", got)
	}
}
