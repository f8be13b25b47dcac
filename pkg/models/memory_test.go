package models

import (
	"testing"
	"time"
)

func TestMemoryEntryFields(t *testing.T) {
	now := time.Now()
	entry := MemoryEntry{
		ID:      "mem-1",
		ActorID: "1:2",
		Content: "the user prefers dark mode",
		Metadata: MemoryMetadata{
			Source: "buffer",
			Role:   "user",
			Tags:   []string{"preference"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if entry.ActorID != "1:2" {
		t.Errorf("ActorID = %q, want %q", entry.ActorID, "1:2")
	}
	if entry.Metadata.Source != "buffer" {
		t.Errorf("Metadata.Source = %q, want %q", entry.Metadata.Source, "buffer")
	}
}

func TestMemoryScopeValues(t *testing.T) {
	cases := []struct {
		scope MemoryScope
		want  string
	}{
		{ScopeActor, "actor"},
		{ScopeGlobal, "global"},
	}
	for _, c := range cases {
		if string(c.scope) != c.want {
			t.Errorf("scope = %q, want %q", c.scope, c.want)
		}
	}
}

func TestSearchRequestRoundTrip(t *testing.T) {
	req := SearchRequest{
		Query:     "dark mode",
		Scope:     ScopeActor,
		ScopeID:   "1:2",
		Limit:     5,
		Threshold: 0.5,
	}
	if req.Scope != ScopeActor {
		t.Errorf("Scope = %v, want %v", req.Scope, ScopeActor)
	}
	if req.Limit != 5 {
		t.Errorf("Limit = %d, want 5", req.Limit)
	}
}

func TestSearchResponseAggregatesResults(t *testing.T) {
	entry := &MemoryEntry{ID: "mem-1", ActorID: "1:2", Content: "x"}
	resp := SearchResponse{
		Results: []*SearchResult{
			{Entry: entry, Score: 0.9},
		},
		TotalCount: 1,
	}
	if len(resp.Results) != 1 || resp.Results[0].Entry.ID != "mem-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
