package reconciler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/tenant"
)

type harness struct {
	store *tenant.MemoryStore
	rec   *Reconciler
}

func newHarness(t *testing.T, agents map[string]tenant.Owner) *harness {
	t.Helper()
	store := tenant.NewMemoryStore()
	resolver := tenant.NewResolver(store, zap.NewNop())

	for agentID, owner := range agents {
		agent, err := tenant.NewAgent(owner, agentID, "agent", map[string]interface{}{}, nil, time.Now())
		require.NoError(t, err)
		require.NoError(t, resolver.RegisterAgent(context.Background(), agent))
	}

	return &harness{store: store, rec: New(resolver, store, zap.NewNop())}
}

func (h *harness) deliver(body string) Result {
	return h.rec.Reconcile(context.Background(), ParseEvent([]byte(body)))
}

func TestReconcile_EndToEnd(t *testing.T) {
	owner := tenant.Owner{UserID: "U9", WorkspaceID: "W9"}
	h := newHarness(t, map[string]tenant.Owner{"A9": owner})

	res := h.deliver(`{"event":"call_analyzed","call":{"agent_id":"A9","call_id":"C100","call_status":"ended","duration_ms":45000,"call_analysis":{"user_sentiment":"Positive","call_successful":true}}}`)

	require.Equal(t, Persisted, res.Outcome)
	assert.Equal(t, http.StatusOK, res.Outcome.HTTPStatus())
	assert.Equal(t, owner, res.Owner)

	stored, err := h.store.GetCallRecord(context.Background(), owner, "C100")
	require.NoError(t, err)
	assert.Equal(t, "users/U9/workspaces/W9/call_history/C100", stored.Path)
	assert.Equal(t, float64(45000), stored.Call["duration_ms"])
	assert.Equal(t, "ended", stored.Call["call_status"])
	assert.Equal(t, map[string]interface{}{"user_sentiment": "Positive", "call_successful": true}, stored.Call["call_analysis"])
}

func TestReconcile_Idempotent(t *testing.T) {
	owner := tenant.Owner{UserID: "U1", WorkspaceID: "W1"}
	h := newHarness(t, map[string]tenant.Owner{"A1": owner})

	first := h.deliver(`{"event":"call_analyzed","call":{"agent_id":"A1","call_id":"C1","duration_ms":1000}}`)
	second := h.deliver(`{"event":"call_analyzed","call":{"agent_id":"A1","call_id":"C1","duration_ms":1500}}`)

	assert.Equal(t, Persisted, first.Outcome)
	assert.Equal(t, Persisted, second.Outcome)
	assert.Equal(t, 1, h.store.CallRecordCount())

	stored, err := h.store.GetCallRecord(context.Background(), owner, "C1")
	require.NoError(t, err)
	assert.Equal(t, float64(1500), stored.Call["duration_ms"])
}

func TestReconcile_FiltersOtherEvents(t *testing.T) {
	h := newHarness(t, map[string]tenant.Owner{"a1": {UserID: "U1", WorkspaceID: "W1"}})

	for _, body := range []string{
		`{"event":"call_started","call":{"agent_id":"a1","call_id":"c1"}}`,
		`{"event":"call_ended","call":{"agent_id":"a1","call_id":"c1"}}`,
		`{"call":{"agent_id":"a1","call_id":"c1"}}`,
		`{"event":"call_started","call":"not an object"}`,
	} {
		res := h.deliver(body)
		assert.Equal(t, Ignored, res.Outcome, body)
		assert.Equal(t, http.StatusOK, res.Outcome.HTTPStatus())
	}
	assert.Equal(t, 0, h.store.CallWrites())
}

func TestReconcile_RejectsMissingIdentifiers(t *testing.T) {
	h := newHarness(t, map[string]tenant.Owner{"A1": {UserID: "U1", WorkspaceID: "W1"}})

	tests := map[string]string{
		"missing agent_id": `{"event":"call_analyzed","call":{"call_id":"C1"}}`,
		"missing call_id":  `{"event":"call_analyzed","call":{"agent_id":"A1"}}`,
		"empty agent_id":   `{"event":"call_analyzed","call":{"agent_id":"","call_id":"C1"}}`,
		"numeric call_id":  `{"event":"call_analyzed","call":{"agent_id":"A1","call_id":42}}`,
		"missing call":     `{"event":"call_analyzed"}`,
		"call is a string": `{"event":"call_analyzed","call":"C1"}`,
		"call is null":     `{"event":"call_analyzed","call":null}`,
		"not json":         `event=call_analyzed`,
		"json array":       `[{"event":"call_analyzed"}]`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			res := h.deliver(body)
			assert.Equal(t, Rejected, res.Outcome)
			assert.Equal(t, http.StatusBadRequest, res.Outcome.HTTPStatus())
		})
	}
	assert.Equal(t, 0, h.store.CallWrites())
}

func TestReconcile_UnknownAgentIsIgnored(t *testing.T) {
	h := newHarness(t, map[string]tenant.Owner{"A1": {UserID: "U1", WorkspaceID: "W1"}})

	res := h.deliver(`{"event":"call_analyzed","call":{"agent_id":"ghost","call_id":"C1"}}`)

	assert.Equal(t, Ignored, res.Outcome)
	assert.Equal(t, http.StatusOK, res.Outcome.HTTPStatus())
	assert.Equal(t, 0, h.store.CallWrites())
}

func TestReconcile_TenantIsolation(t *testing.T) {
	u1 := tenant.Owner{UserID: "U1", WorkspaceID: "W1"}
	u2 := tenant.Owner{UserID: "U2", WorkspaceID: "W2"}
	h := newHarness(t, map[string]tenant.Owner{"A1": u1, "A2": u2})

	require.Equal(t, Persisted, h.deliver(`{"event":"call_analyzed","call":{"agent_id":"A1","call_id":"C1"}}`).Outcome)
	require.Equal(t, Persisted, h.deliver(`{"event":"call_analyzed","call":{"agent_id":"A2","call_id":"C2"}}`).Outcome)

	ctx := context.Background()
	_, err := h.store.GetCallRecord(ctx, u2, "C1")
	assert.ErrorIs(t, err, tenant.ErrNotFound)
	_, err = h.store.GetCallRecord(ctx, u1, "C2")
	assert.ErrorIs(t, err, tenant.ErrNotFound)

	u1Calls, err := h.store.ListCallRecords(ctx, u1, 0)
	require.NoError(t, err)
	require.Len(t, u1Calls, 1)
	assert.Equal(t, "C1", u1Calls[0].CallID)
}

func TestReconcile_CorruptHierarchyFaults(t *testing.T) {
	store := tenant.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateAgent(ctx, tenant.Agent{
		Path:      "users/U1/workspaces/W1/agents/A1",
		AgentID:   "A1",
		CreatedAt: time.Now(),
	}))

	rec := New(tenant.NewResolver(store, zap.NewNop()), store, zap.NewNop())
	res := rec.Reconcile(ctx, ParseEvent([]byte(`{"event":"call_analyzed","call":{"agent_id":"A1","call_id":"C1"}}`)))

	assert.Equal(t, Faulted, res.Outcome)
	assert.Equal(t, http.StatusInternalServerError, res.Outcome.HTTPStatus())
	assert.ErrorIs(t, res.Err, tenant.ErrCorruptHierarchy)
	assert.Equal(t, "corrupt_hierarchy", errorKind(res.Err))
	assert.Equal(t, 0, store.CallWrites())
}

func TestReconcile_IndexedAgentWithBrokenParentFaults(t *testing.T) {
	owner := tenant.Owner{UserID: "U1", WorkspaceID: "W1"}
	h := newHarness(t, map[string]tenant.Owner{"A1": owner})
	ctx := context.Background()

	// agent document rewritten without its parent chain, owner row untouched
	require.NoError(t, h.store.CreateAgent(ctx, tenant.Agent{
		Path:      "users/U1/workspaces/W1/agents/A1",
		AgentID:   "A1",
		CreatedAt: time.Now(),
	}))

	res := h.deliver(`{"event":"call_analyzed","call":{"agent_id":"A1","call_id":"C1"}}`)

	assert.Equal(t, Faulted, res.Outcome)
	assert.ErrorIs(t, res.Err, tenant.ErrCorruptHierarchy)
	assert.Equal(t, 0, h.store.CallWrites())
}

func TestReconcile_OwnerRowWithoutAgentIsIgnored(t *testing.T) {
	store := tenant.NewMemoryStore()
	ctx := context.Background()
	_, err := store.PutOwner(ctx, tenant.OwnerEntry{AgentID: "A1", UserID: "U1", WorkspaceID: "W1", CreatedAt: time.Now()})
	require.NoError(t, err)

	rec := New(tenant.NewResolver(store, zap.NewNop()), store, zap.NewNop())
	res := rec.Reconcile(ctx, ParseEvent([]byte(`{"event":"call_analyzed","call":{"agent_id":"A1","call_id":"C1"}}`)))

	assert.Equal(t, Ignored, res.Outcome)
	assert.Equal(t, http.StatusOK, res.Outcome.HTTPStatus())
	assert.Equal(t, 0, store.CallWrites())
}

type stubResolver struct {
	owner tenant.Owner
	err   error
}

func (s stubResolver) Resolve(ctx context.Context, agentID string) (tenant.Owner, error) {
	return s.owner, s.err
}

type failingWriter struct{ err error }

func (w failingWriter) PutCallRecord(ctx context.Context, owner tenant.Owner, callID, agentID string, call map[string]interface{}) error {
	return w.err
}

func TestReconcile_InfrastructureFaults(t *testing.T) {
	ev := Event{Type: EventCallAnalyzed, Call: map[string]interface{}{"agent_id": "A1", "call_id": "C1"}}
	ctx := context.Background()

	res := New(stubResolver{err: errors.New("mongo timeout")}, failingWriter{}, nil).Reconcile(ctx, ev)
	assert.Equal(t, Faulted, res.Outcome)
	assert.Equal(t, "store", errorKind(res.Err))

	owner := tenant.Owner{UserID: "U1", WorkspaceID: "W1"}
	res = New(stubResolver{owner: owner}, failingWriter{err: errors.New("write failed")}, nil).Reconcile(ctx, ev)
	assert.Equal(t, Faulted, res.Outcome)
	assert.Equal(t, "call record write failed", res.Reason)
}
