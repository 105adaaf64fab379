package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/agent-console/pkg/env"
)

func TestMemoryStore_PutCallRecordOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	first := map[string]interface{}{"call_id": "C1", "duration_ms": float64(1000)}
	second := map[string]interface{}{"call_id": "C1", "duration_ms": float64(2000)}

	if err := s.PutCallRecord(ctx, owner, "C1", "A1", first); err != nil {
		t.Fatalf("PutCallRecord() error = %v", err)
	}
	if err := s.PutCallRecord(ctx, owner, "C1", "A1", second); err != nil {
		t.Fatalf("PutCallRecord() error = %v", err)
	}

	if n := s.CallRecordCount(); n != 1 {
		t.Errorf("CallRecordCount() = %d, want 1", n)
	}

	rec, err := s.GetCallRecord(ctx, owner, "C1")
	if err != nil {
		t.Fatalf("GetCallRecord() error = %v", err)
	}
	if rec.Call["duration_ms"] != float64(2000) {
		t.Errorf("duration_ms = %v, want 2000", rec.Call["duration_ms"])
	}
	if rec.Path != "users/U1/workspaces/W1/call_history/C1" {
		t.Errorf("Path = %q", rec.Path)
	}
}

func TestMemoryStore_ListCallRecordsOrderAndLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}
	other := Owner{UserID: "U2", WorkspaceID: "W1"}

	_ = s.PutCallRecord(ctx, owner, "old", "A1", map[string]interface{}{"start_timestamp": float64(100)})
	_ = s.PutCallRecord(ctx, owner, "new", "A1", map[string]interface{}{"start_timestamp": float64(300)})
	_ = s.PutCallRecord(ctx, owner, "mid", "A1", map[string]interface{}{"start_timestamp": float64(200)})
	_ = s.PutCallRecord(ctx, other, "foreign", "A2", map[string]interface{}{"start_timestamp": float64(999)})

	recs, err := s.ListCallRecords(ctx, owner, 2)
	if err != nil {
		t.Fatalf("ListCallRecords() error = %v", err)
	}
	if len(recs) != 2 || recs[0].CallID != "new" || recs[1].CallID != "mid" {
		t.Errorf("ListCallRecords() = %+v", recs)
	}
}

func TestMemoryStore_MergeAgentKeepsCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	agent, err := NewAgent(owner, "A1", "New Agent", map[string]interface{}{"prompt": ""}, nil, created)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	_ = s.CreateAgent(ctx, agent)

	updated := created.Add(time.Hour)
	inserted, err := s.MergeAgent(ctx, owner, "A1", AgentPatch{Name: "Support", Config: map[string]interface{}{"prompt": "hi"}, UpdatedAt: updated})
	if err != nil {
		t.Fatalf("MergeAgent() error = %v", err)
	}
	if inserted {
		t.Error("MergeAgent() reported insert for an existing agent")
	}

	got, err := s.GetAgent(ctx, owner, "A1")
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if got.Name != "Support" || !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(updated) {
		t.Errorf("agent = %+v", got)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	owner := Owner{UserID: "U1", WorkspaceID: "W1"}

	if _, err := s.GetAgent(ctx, owner, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAgent() error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindLatestAgent(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindLatestAgent() error = %v, want ErrNotFound", err)
	}
	if _, err := s.LookupOwner(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LookupOwner() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_MirrorsAreScoped(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := Owner{UserID: "U1", WorkspaceID: "W1"}
	b := Owner{UserID: "U2", WorkspaceID: "W2"}

	_ = s.PutKnowledgeBase(ctx, a, "kb1", "text", "U1", map[string]interface{}{"id": "kb1"})
	_ = s.PutPhoneNumber(ctx, b, "+14155550123", map[string]interface{}{"phone_number": "+14155550123"})

	kbs, _ := s.ListKnowledgeBases(ctx, a)
	if len(kbs) != 1 || kbs[0].Kind != "text" || kbs[0].CreatedBy != "U1" {
		t.Errorf("ListKnowledgeBases(a) = %+v", kbs)
	}
	if kbs, _ := s.ListKnowledgeBases(ctx, b); len(kbs) != 0 {
		t.Errorf("ListKnowledgeBases(b) = %+v, want empty", kbs)
	}
	if nums, _ := s.ListPhoneNumbers(ctx, b); len(nums) != 1 {
		t.Errorf("ListPhoneNumbers(b) = %+v", nums)
	}
}

func TestOpen_MemoryDriver(t *testing.T) {
	b, err := Open(context.Background(), &env.Config{StoreDriver: "memory"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := b.Store.(*MemoryStore); !ok {
		t.Errorf("Store = %T, want *MemoryStore", b.Store)
	}
	if err := b.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := Open(context.Background(), &env.Config{StoreDriver: "firestore"}, zap.NewNop()); err == nil {
		t.Error("Open() expected error for unknown driver")
	}
}
