package tenant

import (
	"context"
	"time"
)

// Store persists the tenant hierarchy. Get and Find methods return
// ErrNotFound when nothing matches.
type Store interface {
	// EnsureWorkspace creates the user and workspace documents if missing.
	EnsureWorkspace(ctx context.Context, owner Owner) error

	// CreateAgent writes agent at agent.Path, overwriting any previous copy.
	CreateAgent(ctx context.Context, agent Agent) error
	// MergeAgent sets name, config and updated_at, creating the document
	// when it does not exist yet. created reports whether it did.
	MergeAgent(ctx context.Context, owner Owner, agentID string, patch AgentPatch) (created bool, err error)
	GetAgent(ctx context.Context, owner Owner, agentID string) (*Agent, error)
	ListAgents(ctx context.Context, owner Owner) ([]Agent, error)
	// FindLatestAgent searches every tenant for agentID and returns the most
	// recently created match.
	FindLatestAgent(ctx context.Context, agentID string) (*Agent, error)
	// EachAgent visits every agent of every tenant.
	EachAgent(ctx context.Context, fn func(Agent) error) error

	LookupOwner(ctx context.Context, agentID string) (*OwnerEntry, error)
	// PutOwner indexes entry and returns the entry it replaced, if any.
	PutOwner(ctx context.Context, entry OwnerEntry) (*OwnerEntry, error)
	DeleteOwner(ctx context.Context, agentID string) error

	// PutCallRecord creates or overwrites the record keyed by callID.
	PutCallRecord(ctx context.Context, owner Owner, callID, agentID string, call map[string]interface{}) error
	GetCallRecord(ctx context.Context, owner Owner, callID string) (*CallRecord, error)
	// ListCallRecords returns newest calls first by call.start_timestamp.
	ListCallRecords(ctx context.Context, owner Owner, limit int) ([]CallRecord, error)
	// EachCallRecord visits every call record of owner in no particular order.
	EachCallRecord(ctx context.Context, owner Owner, fn func(CallRecord) error) error

	PutKnowledgeBase(ctx context.Context, owner Owner, kbID, kind, createdBy string, data map[string]interface{}) error
	ListKnowledgeBases(ctx context.Context, owner Owner) ([]Mirror, error)
	PutPhoneNumber(ctx context.Context, owner Owner, number string, data map[string]interface{}) error
	ListPhoneNumbers(ctx context.Context, owner Owner) ([]Mirror, error)

	Ping(ctx context.Context) error
}

// NewAgent builds an agent document under owner.
func NewAgent(owner Owner, agentID, name string, config, platform map[string]interface{}, now time.Time) (Agent, error) {
	path, err := DocPath(owner, CollAgents, agentID)
	if err != nil {
		return Agent{}, err
	}

	return Agent{
		Path:      path,
		AgentID:   agentID,
		Name:      name,
		Config:    config,
		Platform:  platform,
		Parent:    WorkspaceRef(owner),
		CreatedAt: now.UTC(),
	}, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// startTimestamp reads call.start_timestamp as a number for ordering.
// Missing or non numeric values sort last.
func startTimestamp(call map[string]interface{}) float64 {
	switch v := call["start_timestamp"].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return -1
	}
}
