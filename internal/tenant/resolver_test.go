package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/agent-console/pkg/metrics"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustAgent(t *testing.T, owner Owner, agentID string, created time.Time) Agent {
	t.Helper()
	a, err := NewAgent(owner, agentID, "agent", map[string]interface{}{}, nil, created)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	return a
}

type failingIndexStore struct {
	*MemoryStore
	lookupErr error
	putErr    error
}

func (s *failingIndexStore) LookupOwner(ctx context.Context, agentID string) (*OwnerEntry, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.MemoryStore.LookupOwner(ctx, agentID)
}

func (s *failingIndexStore) PutOwner(ctx context.Context, entry OwnerEntry) (*OwnerEntry, error) {
	if s.putErr != nil {
		return nil, s.putErr
	}
	return s.MemoryStore.PutOwner(ctx, entry)
}

func TestResolve_ViaOwnerIndex(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	if err := r.RegisterAgent(ctx, mustAgent(t, owner, "A1", t0)); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}

	entry, err := store.LookupOwner(ctx, "A1")
	if err != nil || entry.Owner() != owner {
		t.Fatalf("owner index = %+v, %v", entry, err)
	}

	got, err := r.Resolve(ctx, "A1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != owner {
		t.Errorf("Resolve() = %+v, want %+v", got, owner)
	}
}

func TestResolve_FallsBackToParentWalk(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	owner := Owner{UserID: "U9", WorkspaceID: "W9"}

	// legacy agent written without an index row
	_ = store.CreateAgent(ctx, mustAgent(t, owner, "A9", t0))

	got, err := r.Resolve(ctx, "A9")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != owner {
		t.Errorf("Resolve() = %+v, want %+v", got, owner)
	}
}

func TestResolve_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		setup       func(s *MemoryStore)
		agentID     string
		wantErr     error
		wantMissing string
	}{
		{
			name:    "empty id",
			setup:   func(s *MemoryStore) {},
			agentID: "  ",
			wantErr: ErrEmptyAgentID,
		},
		{
			name:    "unknown agent",
			setup:   func(s *MemoryStore) {},
			agentID: "ghost",
			wantErr: ErrNotFound,
		},
		{
			name: "workspace reference absent",
			setup: func(s *MemoryStore) {
				_ = s.CreateAgent(ctx, Agent{Path: "orphans/A7", AgentID: "A7", CreatedAt: t0})
			},
			agentID:     "A7",
			wantErr:     ErrCorruptHierarchy,
			wantMissing: "workspace",
		},
		{
			name: "user reference absent",
			setup: func(s *MemoryStore) {
				_ = s.CreateAgent(ctx, Agent{
					Path:      "users/U1/workspaces/W1/agents/A8",
					AgentID:   "A8",
					Parent:    &ParentRef{Collection: CollWorkspaces, ID: "W1"},
					CreatedAt: t0,
				})
			},
			agentID:     "A8",
			wantErr:     ErrCorruptHierarchy,
			wantMissing: "user",
		},
		{
			name: "blank owner index row",
			setup: func(s *MemoryStore) {
				_, _ = s.PutOwner(ctx, OwnerEntry{AgentID: "A6", UserID: "U1"})
			},
			agentID:     "A6",
			wantErr:     ErrCorruptHierarchy,
			wantMissing: "owner index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			tt.setup(store)

			_, err := NewResolver(store, zap.NewNop()).Resolve(ctx, tt.agentID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantMissing != "" {
				var herr *HierarchyError
				if !errors.As(err, &herr) {
					t.Fatalf("Resolve() error = %T, want *HierarchyError", err)
				}
				if herr.Missing != tt.wantMissing {
					t.Errorf("Missing = %q, want %q", herr.Missing, tt.wantMissing)
				}
			}
		})
	}
}

func TestResolve_StoreErrorIsNotNotFound(t *testing.T) {
	boom := errors.New("connection reset")
	store := &failingIndexStore{MemoryStore: NewMemoryStore(), lookupErr: boom}

	_, err := NewResolver(store, zap.NewNop()).Resolve(context.Background(), "A1")
	if !errors.Is(err, boom) {
		t.Fatalf("Resolve() error = %v, want wrapped boom", err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorruptHierarchy) {
		t.Errorf("Resolve() error = %v classified as domain error", err)
	}
}

func TestResolve_NewestAgentWinsOnCollision(t *testing.T) {
	metrics.Reset()
	ctx := context.Background()
	older := Owner{UserID: "U1", WorkspaceID: "W1"}
	newer := Owner{UserID: "U2", WorkspaceID: "W2"}

	for _, withIndex := range []bool{true, false} {
		store := NewMemoryStore()
		r := NewResolver(store, zap.NewNop())

		if withIndex {
			_ = r.RegisterAgent(ctx, mustAgent(t, older, "dup", t0))
			_ = r.RegisterAgent(ctx, mustAgent(t, newer, "dup", t0.Add(time.Minute)))
		} else {
			_ = store.CreateAgent(ctx, mustAgent(t, newer, "dup", t0.Add(time.Minute)))
			_ = store.CreateAgent(ctx, mustAgent(t, older, "dup", t0))
		}

		got, err := r.Resolve(ctx, "dup")
		if err != nil {
			t.Fatalf("Resolve() withIndex=%v error = %v", withIndex, err)
		}
		if got != newer {
			t.Errorf("Resolve() withIndex=%v = %+v, want %+v", withIndex, got, newer)
		}
	}

	if n := metrics.AgentIDCollisions(); n != 1 {
		t.Errorf("AgentIDCollisions() = %d, want 1", n)
	}
}

func TestResolve_TenantIsolation(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	u1 := Owner{UserID: "U1", WorkspaceID: "W1"}
	u2 := Owner{UserID: "U2", WorkspaceID: "W1"}

	_ = r.RegisterAgent(ctx, mustAgent(t, u1, "A1", t0))
	_ = r.RegisterAgent(ctx, mustAgent(t, u2, "A2", t0))

	if got, _ := r.Resolve(ctx, "A1"); got != u1 {
		t.Errorf("Resolve(A1) = %+v, want %+v", got, u1)
	}
	if got, _ := r.Resolve(ctx, "A2"); got != u2 {
		t.Errorf("Resolve(A2) = %+v, want %+v", got, u2)
	}
}

func TestRegisterAgent_IndexFailureStillResolves(t *testing.T) {
	store := &failingIndexStore{MemoryStore: NewMemoryStore(), putErr: errors.New("index down")}
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	if err := r.RegisterAgent(ctx, mustAgent(t, owner, "A1", t0)); err != nil {
		t.Fatalf("RegisterAgent() error = %v, want nil when only the index write fails", err)
	}

	got, err := r.Resolve(ctx, "A1")
	if err != nil || got != owner {
		t.Errorf("Resolve() = %+v, %v", got, err)
	}
}

func TestRegisterAgent_CreatesWorkspace(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	_ = r.RegisterAgent(context.Background(), mustAgent(t, owner, "A1", t0))

	if _, ok := store.workspaces[WorkspacePath(owner)]; !ok {
		t.Error("workspace document not created")
	}
	if _, ok := store.users[UserPath("U1")]; !ok {
		t.Error("user document not created")
	}
}

func TestBackfill(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()

	_ = store.CreateAgent(ctx, mustAgent(t, Owner{UserID: "U1", WorkspaceID: "W1"}, "A1", t0))
	_ = store.CreateAgent(ctx, mustAgent(t, Owner{UserID: "U2", WorkspaceID: "W2"}, "A1", t0.Add(time.Hour)))
	_ = store.CreateAgent(ctx, Agent{Path: "broken", AgentID: "B1", CreatedAt: t0})

	report, err := r.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if report.Scanned != 3 || report.Indexed != 2 || report.Corrupt != 1 {
		t.Errorf("Backfill() = %+v", report)
	}

	entry, err := store.LookupOwner(ctx, "A1")
	if err != nil || entry.UserID != "U2" {
		t.Errorf("LookupOwner(A1) = %+v, %v, want newest owner U2", entry, err)
	}
}

func TestResolve_IndexedAgentDeleted(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	agent := mustAgent(t, owner, "A1", t0)
	if err := r.RegisterAgent(ctx, agent); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}
	delete(store.agents, agent.Path)

	if _, err := r.Resolve(ctx, "A1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
	if _, err := store.LookupOwner(ctx, "A1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale owner row kept, LookupOwner() error = %v", err)
	}
}

func TestResolve_StaleIndexRepairedFromAgents(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	older := Owner{UserID: "U1", WorkspaceID: "W1"}
	newer := Owner{UserID: "U2", WorkspaceID: "W2"}

	_ = store.CreateAgent(ctx, mustAgent(t, older, "A1", t0))
	gone := mustAgent(t, newer, "A1", t0.Add(time.Hour))
	_ = r.RegisterAgent(ctx, gone)
	delete(store.agents, gone.Path)

	got, err := r.Resolve(ctx, "A1")
	if err != nil || got != older {
		t.Fatalf("Resolve() = %+v, %v, want %+v", got, err, older)
	}

	entry, err := store.LookupOwner(ctx, "A1")
	if err != nil || entry.Owner() != older {
		t.Errorf("LookupOwner() = %+v, %v, want repaired row for %+v", entry, err, older)
	}
}

func TestResolve_IndexedAgentWithBrokenParent(t *testing.T) {
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	tests := []struct {
		name        string
		parent      *ParentRef
		wantMissing string
	}{
		{name: "parent removed", parent: nil, wantMissing: "workspace"},
		{name: "user removed", parent: &ParentRef{Collection: CollWorkspaces, ID: "W1"}, wantMissing: "user"},
		{name: "parent names another workspace", parent: WorkspaceRef(Owner{UserID: "U1", WorkspaceID: "W2"}), wantMissing: "matching workspace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			r := NewResolver(store, zap.NewNop())

			agent := mustAgent(t, owner, "A1", t0)
			if err := r.RegisterAgent(ctx, agent); err != nil {
				t.Fatalf("RegisterAgent() error = %v", err)
			}
			agent.Parent = tt.parent
			store.agents[agent.Path] = agent

			_, err := r.Resolve(ctx, "A1")
			var herr *HierarchyError
			if !errors.As(err, &herr) || !errors.Is(err, ErrCorruptHierarchy) {
				t.Fatalf("Resolve() error = %v, want *HierarchyError", err)
			}
			if herr.Missing != tt.wantMissing {
				t.Errorf("Missing = %q, want %q", herr.Missing, tt.wantMissing)
			}
		})
	}
}

func TestUpdateAgent_IndexesInsertedAgent(t *testing.T) {
	metrics.Reset()
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	first := Owner{UserID: "U1", WorkspaceID: "W1"}
	second := Owner{UserID: "U2", WorkspaceID: "W2"}

	_ = r.RegisterAgent(ctx, mustAgent(t, first, "A1", time.Now().Add(-time.Hour)))

	if err := r.UpdateAgent(ctx, second, "A1", AgentPatch{Name: "Copy", UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("UpdateAgent() error = %v", err)
	}

	latest, err := store.FindLatestAgent(ctx, "A1")
	if err != nil {
		t.Fatalf("FindLatestAgent() error = %v", err)
	}
	got, err := r.Resolve(ctx, "A1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != second || latest.Path != "users/U2/workspaces/W2/agents/A1" {
		t.Errorf("Resolve() = %+v, latest = %s, want both on %+v", got, latest.Path, second)
	}
	if n := metrics.AgentIDCollisions(); n != 1 {
		t.Errorf("AgentIDCollisions() = %d, want 1", n)
	}
}

func TestUpdateAgent_ExistingAgentKeepsIndex(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store, zap.NewNop())
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	_ = r.RegisterAgent(ctx, mustAgent(t, owner, "A1", t0))
	before, _ := store.LookupOwner(ctx, "A1")

	if err := r.UpdateAgent(ctx, owner, "A1", AgentPatch{Name: "Renamed", UpdatedAt: t0.Add(time.Hour)}); err != nil {
		t.Fatalf("UpdateAgent() error = %v", err)
	}

	after, err := store.LookupOwner(ctx, "A1")
	if err != nil || *after != *before {
		t.Errorf("owner row changed: before %+v after %+v (%v)", before, after, err)
	}
}
