package audit

import (
	"context"
	"testing"
)

func TestMemoryRecorder_Stamps(t *testing.T) {
	r := &MemoryRecorder{}

	r.Record(context.Background(), Entry{Action: ActionCreate, ResourceType: "agent", ResourceID: "A1"})

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ID == "" || entries[0].CreatedAt.IsZero() {
		t.Errorf("entry not stamped: %+v", entries[0])
	}
}
