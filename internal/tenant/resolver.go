package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/troikatech/agent-console/pkg/logger"
	"github.com/troikatech/agent-console/pkg/metrics"
)

// Resolver maps an agent id back to the tenant and workspace that own it.
// It prefers the owner index and falls back to walking the parent chain of
// the newest agent document carrying that id.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

func NewResolver(store Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, logger: log}
}

// Resolve returns ErrNotFound when no agent carries agentID and an error
// wrapping ErrCorruptHierarchy when the match has a broken owner chain.
// Any other error comes from the store.
//
// An index hit only counts when the agent document still exists at the
// indexed path. Stale rows are repaired from the structural lookup, or
// dropped when no agent is left.
func (r *Resolver) Resolve(ctx context.Context, agentID string) (Owner, error) {
	if strings.TrimSpace(agentID) == "" {
		return Owner{}, ErrEmptyAgentID
	}

	entry, err := r.store.LookupOwner(ctx, agentID)
	switch {
	case err == nil:
		owner, ok, err := r.verifyEntry(ctx, agentID, entry)
		if err != nil || ok {
			return owner, err
		}
	case errors.Is(err, ErrNotFound):
		entry = nil
	default:
		return Owner{}, fmt.Errorf("owner index lookup for %q: %w", agentID, err)
	}

	metrics.RecordOwnerIndexMiss()

	agent, err := r.store.FindLatestAgent(ctx, agentID)
	if errors.Is(err, ErrNotFound) {
		if entry != nil {
			r.dropEntry(ctx, agentID)
		}
		return Owner{}, ErrNotFound
	}
	if err != nil {
		return Owner{}, fmt.Errorf("agent lookup for %q: %w", agentID, err)
	}

	owner, err := agent.Parent.owner(agentID, agent.Path)
	if err != nil {
		return Owner{}, err
	}
	if entry != nil {
		r.repairEntry(ctx, *agent, owner)
	}
	return owner, nil
}

// verifyEntry checks an index row against the agent document it points at.
// ok is false when the document is gone and the row is stale.
func (r *Resolver) verifyEntry(ctx context.Context, agentID string, entry *OwnerEntry) (Owner, bool, error) {
	if !validSegment(entry.UserID) || !validSegment(entry.WorkspaceID) {
		return Owner{}, false, &HierarchyError{AgentID: agentID, Path: CollAgentOwners + "/" + agentID, Missing: "owner index"}
	}

	agent, err := r.store.GetAgent(ctx, entry.Owner(), agentID)
	if errors.Is(err, ErrNotFound) {
		r.logger.Warn("Owner index points at a missing agent",
			zap.String("agent_id", agentID),
			logger.Owner(entry.UserID, entry.WorkspaceID),
		)
		return Owner{}, false, nil
	}
	if err != nil {
		return Owner{}, false, fmt.Errorf("agent lookup for %q: %w", agentID, err)
	}

	owner, err := agent.Parent.owner(agentID, agent.Path)
	if err != nil {
		return Owner{}, false, err
	}
	if owner != entry.Owner() {
		return Owner{}, false, &HierarchyError{AgentID: agentID, Path: agent.Path, Missing: "matching workspace"}
	}
	return owner, true, nil
}

func (r *Resolver) repairEntry(ctx context.Context, agent Agent, owner Owner) {
	if _, err := r.store.PutOwner(ctx, OwnerEntry{
		AgentID:     agent.AgentID,
		UserID:      owner.UserID,
		WorkspaceID: owner.WorkspaceID,
		CreatedAt:   agent.CreatedAt,
	}); err != nil {
		r.logger.Warn("Failed to repair stale owner index row",
			zap.String("agent_id", agent.AgentID),
			zap.Error(err),
		)
	}
}

func (r *Resolver) dropEntry(ctx context.Context, agentID string) {
	if err := r.store.DeleteOwner(ctx, agentID); err != nil {
		r.logger.Warn("Failed to drop stale owner index row",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
	}
}

// UpdateAgent merge-writes patch onto the owner's agent. When the merge had
// to create the document, the new agent is indexed like a registered one.
func (r *Resolver) UpdateAgent(ctx context.Context, owner Owner, agentID string, patch AgentPatch) error {
	if err := r.store.EnsureWorkspace(ctx, owner); err != nil {
		return fmt.Errorf("failed to ensure workspace: %w", err)
	}

	created, err := r.store.MergeAgent(ctx, owner, agentID, patch)
	if err != nil {
		return fmt.Errorf("failed to merge agent: %w", err)
	}
	if !created {
		return nil
	}

	agent, err := r.store.GetAgent(ctx, owner, agentID)
	if err != nil {
		r.logger.Warn("Merged agent not readable for indexing",
			zap.String("agent_id", agentID),
			logger.Owner(owner.UserID, owner.WorkspaceID),
			zap.Error(err),
		)
		return nil
	}
	r.index(ctx, *agent, owner)
	return nil
}

// RegisterAgent writes a new agent document and then indexes its owner.
// A failed index write is logged and left to the structural fallback.
func (r *Resolver) RegisterAgent(ctx context.Context, agent Agent) error {
	owner, err := agent.Parent.owner(agent.AgentID, agent.Path)
	if err != nil {
		return err
	}

	if err := r.store.EnsureWorkspace(ctx, owner); err != nil {
		return fmt.Errorf("failed to ensure workspace: %w", err)
	}
	if err := r.store.CreateAgent(ctx, agent); err != nil {
		return fmt.Errorf("failed to store agent: %w", err)
	}

	r.index(ctx, agent, owner)
	return nil
}

func (r *Resolver) index(ctx context.Context, agent Agent, owner Owner) {
	prev, err := r.store.PutOwner(ctx, OwnerEntry{
		AgentID:     agent.AgentID,
		UserID:      owner.UserID,
		WorkspaceID: owner.WorkspaceID,
		CreatedAt:   agent.CreatedAt,
	})
	if err != nil {
		r.logger.Warn("Owner index write failed, resolution will fall back to agent lookup",
			zap.String("agent_id", agent.AgentID),
			logger.Owner(owner.UserID, owner.WorkspaceID),
			zap.Error(err),
		)
		return
	}

	if prev != nil && prev.Owner() != owner {
		metrics.RecordAgentIDCollision()
		r.logger.Warn("Agent id already owned by another workspace, newest agent wins",
			zap.String("agent_id", agent.AgentID),
			logger.Owner(owner.UserID, owner.WorkspaceID),
			zap.Dict("previous_owner",
				zap.String("user_id", prev.UserID),
				zap.String("workspace_id", prev.WorkspaceID),
			),
		)
	}
}

type BackfillReport struct {
	Scanned int `json:"scanned"`
	Indexed int `json:"indexed"`
	Corrupt int `json:"corrupt"`
}

// Backfill rebuilds the owner index from agent documents, oldest first, so
// the newest agent per id ends up indexed.
func (r *Resolver) Backfill(ctx context.Context) (BackfillReport, error) {
	var report BackfillReport

	err := r.store.EachAgent(ctx, func(agent Agent) error {
		report.Scanned++

		owner, err := agent.Parent.owner(agent.AgentID, agent.Path)
		if err != nil {
			report.Corrupt++
			r.logger.Error("Skipping agent with broken owner chain",
				zap.String("agent_id", agent.AgentID),
				zap.String("path", agent.Path),
				zap.Error(err),
			)
			return nil
		}

		if _, err := r.store.PutOwner(ctx, OwnerEntry{
			AgentID:     agent.AgentID,
			UserID:      owner.UserID,
			WorkspaceID: owner.WorkspaceID,
			CreatedAt:   agent.CreatedAt,
		}); err != nil {
			return fmt.Errorf("failed to index agent %q: %w", agent.AgentID, err)
		}
		report.Indexed++
		return nil
	})

	return report, err
}
