package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/actorcore/pkg/models"
)

// ActorMemory narrows Manager's scope-agnostic Index/Search to the
// per-actor operations an Actor Worker needs (spec.md §4.4:
// addShortTermMemory/addLongTermMemory/search), keyed by ActorIdentity.
type ActorMemory struct {
	manager *Manager
}

// NewActorMemory wraps a Manager for actor-scoped use.
func NewActorMemory(m *Manager) *ActorMemory {
	return &ActorMemory{manager: m}
}

// AddShortTerm indexes a buffer-sourced note (role "user" or "assistant")
// under the given actor.
func (a *ActorMemory) AddShortTerm(ctx context.Context, actor models.ActorIdentity, role, content string) error {
	return a.index(ctx, actor, "buffer", role, content)
}

// AddLongTerm indexes a durable note (e.g. a user fact or preference) under
// the given actor.
func (a *ActorMemory) AddLongTerm(ctx context.Context, actor models.ActorIdentity, content string) error {
	return a.index(ctx, actor, "note", "", content)
}

func (a *ActorMemory) index(ctx context.Context, actor models.ActorIdentity, source, role, content string) error {
	now := time.Now()
	entry := &models.MemoryEntry{
		ID:      uuid.NewString(),
		ActorID: actor.String(),
		Content: content,
		Metadata: models.MemoryMetadata{
			Source: source,
			Role:   role,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return a.manager.Index(ctx, []*models.MemoryEntry{entry})
}

// Search runs a semantic search scoped to one actor's memories.
func (a *ActorMemory) Search(ctx context.Context, actor models.ActorIdentity, query string, limit int) (*models.SearchResponse, error) {
	return a.manager.Search(ctx, &models.SearchRequest{
		Query:   query,
		Scope:   models.ScopeActor,
		ScopeID: actor.String(),
		Limit:   limit,
	})
}
