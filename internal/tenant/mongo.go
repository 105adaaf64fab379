package tenant

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"

	"github.com/troikatech/agent-console/pkg/mongo"
	"github.com/troikatech/agent-console/pkg/otel"
)

// CollAgentOwners holds the agent_id -> owner index.
const CollAgentOwners = "agent_owners"

// MongoStore keeps every level of the hierarchy in its own collection.
// Documents are keyed by their full path and carry the parent chain.
type MongoStore struct {
	db *mongo.Client
}

func NewMongoStore(db *mongo.Client) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) span(ctx context.Context, collection, op string, fn func(ctx context.Context) error) error {
	return otel.WithDBSpan(ctx, "mongodb", collection, op, fn)
}

// EnsureIndexes creates the indexes the lookups rely on. Safe to rerun.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	byOwner := bson.D{{Key: "parent.parent.id", Value: 1}, {Key: "parent.id", Value: 1}}

	specs := map[string][]driver.IndexModel{
		CollAgents: {
			{Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: byOwner},
		},
		CollCallHistory: {
			{Keys: append(append(bson.D{}, byOwner...), bson.E{Key: "call.start_timestamp", Value: -1})},
		},
		CollKnowledgeBases: {{Keys: byOwner}},
		CollPhoneNumbers:   {{Keys: byOwner}},
	}

	for collection, models := range specs {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}

func (s *MongoStore) EnsureWorkspace(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	return s.span(ctx, CollWorkspaces, "upsert", func(ctx context.Context) error {
		now := nowUTC()
		if _, err := s.db.NewQuery(CollUsers).Eq("_id", UserPath(owner.UserID)).
			Upsert(ctx, nil, bson.M{"user_id": owner.UserID, "created_at": now}); err != nil {
			return fmt.Errorf("failed to ensure user: %w", err)
		}

		if _, err := s.db.NewQuery(CollWorkspaces).Eq("_id", WorkspacePath(owner)).
			Upsert(ctx, nil, bson.M{
				"workspace_id": owner.WorkspaceID,
				"parent":       ParentRef{Collection: CollUsers, ID: owner.UserID},
				"created_at":   now,
			}); err != nil {
			return fmt.Errorf("failed to ensure workspace: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) CreateAgent(ctx context.Context, agent Agent) error {
	if agent.Path == "" || agent.AgentID == "" {
		return fmt.Errorf("%w: agent needs path and agent_id", ErrInvalidPath)
	}

	return s.span(ctx, CollAgents, "replace", func(ctx context.Context) error {
		_, err := s.db.NewQuery(CollAgents).Eq("_id", agent.Path).Replace(ctx, agent)
		return err
	})
}

func (s *MongoStore) MergeAgent(ctx context.Context, owner Owner, agentID string, patch AgentPatch) (bool, error) {
	path, err := DocPath(owner, CollAgents, agentID)
	if err != nil {
		return false, err
	}

	var created bool
	err = s.span(ctx, CollAgents, "merge", func(ctx context.Context) error {
		res, err := s.db.NewQuery(CollAgents).Eq("_id", path).Upsert(ctx,
			bson.M{"name": patch.Name, "config": patch.Config, "updated_at": patch.UpdatedAt.UTC()},
			bson.M{"agent_id": agentID, "parent": WorkspaceRef(owner), "created_at": nowUTC()},
		)
		if err != nil {
			return err
		}
		created = res.UpsertedCount > 0
		return nil
	})
	return created, err
}

func (s *MongoStore) GetAgent(ctx context.Context, owner Owner, agentID string) (*Agent, error) {
	path, err := DocPath(owner, CollAgents, agentID)
	if err != nil {
		return nil, err
	}

	var agent Agent
	var found bool
	err = s.span(ctx, CollAgents, "find_one", func(ctx context.Context) error {
		var err error
		found, err = s.db.NewQuery(CollAgents).Eq("_id", path).One(ctx, &agent)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &agent, nil
}

func (s *MongoStore) ListAgents(ctx context.Context, owner Owner) ([]Agent, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	agents := []Agent{}
	err := s.span(ctx, CollAgents, "find", func(ctx context.Context) error {
		return ownerQuery(s.db.NewQuery(CollAgents), owner).Sort("created_at", false).All(ctx, &agents)
	})
	return agents, err
}

func (s *MongoStore) FindLatestAgent(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	var found bool
	err := s.span(ctx, CollAgents, "find_latest", func(ctx context.Context) error {
		var err error
		found, err = s.db.NewQuery(CollAgents).
			Eq("agent_id", agentID).
			Sort("created_at", false).
			Limit(1).
			One(ctx, &agent)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &agent, nil
}

func (s *MongoStore) EachAgent(ctx context.Context, fn func(Agent) error) error {
	return s.db.NewQuery(CollAgents).Sort("created_at", true).Each(ctx, func(cur *driver.Cursor) error {
		var agent Agent
		if err := cur.Decode(&agent); err != nil {
			return fmt.Errorf("failed to decode agent: %w", err)
		}
		return fn(agent)
	})
}

func (s *MongoStore) LookupOwner(ctx context.Context, agentID string) (*OwnerEntry, error) {
	var entry OwnerEntry
	var found bool
	err := s.span(ctx, CollAgentOwners, "find_one", func(ctx context.Context) error {
		var err error
		found, err = s.db.NewQuery(CollAgentOwners).Eq("_id", agentID).One(ctx, &entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (s *MongoStore) PutOwner(ctx context.Context, entry OwnerEntry) (*OwnerEntry, error) {
	if entry.AgentID == "" {
		return nil, fmt.Errorf("%w: owner entry needs agent_id", ErrInvalidPath)
	}

	var prev OwnerEntry
	var had bool
	err := s.span(ctx, CollAgentOwners, "swap", func(ctx context.Context) error {
		var err error
		had, err = s.db.NewQuery(CollAgentOwners).Eq("_id", entry.AgentID).Swap(ctx, entry, &prev)
		return err
	})
	if err != nil || !had {
		return nil, err
	}
	return &prev, nil
}

func (s *MongoStore) DeleteOwner(ctx context.Context, agentID string) error {
	return s.span(ctx, CollAgentOwners, "delete", func(ctx context.Context) error {
		return s.db.NewQuery(CollAgentOwners).Eq("_id", agentID).Delete(ctx)
	})
}

func (s *MongoStore) PutCallRecord(ctx context.Context, owner Owner, callID, agentID string, call map[string]interface{}) error {
	path, err := DocPath(owner, CollCallHistory, callID)
	if err != nil {
		return err
	}

	rec := CallRecord{
		Path:       path,
		CallID:     callID,
		AgentID:    agentID,
		Parent:     WorkspaceRef(owner),
		ReceivedAt: nowUTC(),
		Call:       call,
	}

	return s.span(ctx, CollCallHistory, "replace", func(ctx context.Context) error {
		_, err := s.db.NewQuery(CollCallHistory).Eq("_id", path).Replace(ctx, rec)
		return err
	})
}

func (s *MongoStore) GetCallRecord(ctx context.Context, owner Owner, callID string) (*CallRecord, error) {
	path, err := DocPath(owner, CollCallHistory, callID)
	if err != nil {
		return nil, err
	}

	var rec CallRecord
	var found bool
	err = s.span(ctx, CollCallHistory, "find_one", func(ctx context.Context) error {
		var err error
		found, err = s.db.NewQuery(CollCallHistory).Eq("_id", path).One(ctx, &rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MongoStore) ListCallRecords(ctx context.Context, owner Owner, limit int) ([]CallRecord, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	records := []CallRecord{}
	err := s.span(ctx, CollCallHistory, "find", func(ctx context.Context) error {
		q := ownerQuery(s.db.NewQuery(CollCallHistory), owner).Sort("call.start_timestamp", false)
		if limit > 0 {
			q = q.Limit(int64(limit))
		}
		return q.All(ctx, &records)
	})
	return records, err
}

func (s *MongoStore) EachCallRecord(ctx context.Context, owner Owner, fn func(CallRecord) error) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	return s.span(ctx, CollCallHistory, "scan", func(ctx context.Context) error {
		return ownerQuery(s.db.NewQuery(CollCallHistory), owner).Each(ctx, func(cur *driver.Cursor) error {
			var rec CallRecord
			if err := cur.Decode(&rec); err != nil {
				return fmt.Errorf("failed to decode call record: %w", err)
			}
			return fn(rec)
		})
	})
}

func (s *MongoStore) putMirror(ctx context.Context, owner Owner, collection, id, kind, createdBy string, data map[string]interface{}) error {
	path, err := DocPath(owner, collection, id)
	if err != nil {
		return err
	}

	now := nowUTC()
	set := bson.M{"data": data, "updated_at": now}
	if kind != "" {
		set["kind"] = kind
	}
	onInsert := bson.M{"resource_id": id, "parent": WorkspaceRef(owner), "created_at": now}
	if createdBy != "" {
		onInsert["created_by"] = createdBy
	}

	return s.span(ctx, collection, "upsert", func(ctx context.Context) error {
		_, err := s.db.NewQuery(collection).Eq("_id", path).Upsert(ctx, set, onInsert)
		return err
	})
}

func (s *MongoStore) listMirrors(ctx context.Context, owner Owner, collection string) ([]Mirror, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	mirrors := []Mirror{}
	err := s.span(ctx, collection, "find", func(ctx context.Context) error {
		return ownerQuery(s.db.NewQuery(collection), owner).Sort("created_at", false).All(ctx, &mirrors)
	})
	return mirrors, err
}

func (s *MongoStore) PutKnowledgeBase(ctx context.Context, owner Owner, kbID, kind, createdBy string, data map[string]interface{}) error {
	return s.putMirror(ctx, owner, CollKnowledgeBases, kbID, kind, createdBy, data)
}

func (s *MongoStore) ListKnowledgeBases(ctx context.Context, owner Owner) ([]Mirror, error) {
	return s.listMirrors(ctx, owner, CollKnowledgeBases)
}

func (s *MongoStore) PutPhoneNumber(ctx context.Context, owner Owner, number string, data map[string]interface{}) error {
	return s.putMirror(ctx, owner, CollPhoneNumbers, number, "", "", data)
}

func (s *MongoStore) ListPhoneNumbers(ctx context.Context, owner Owner) ([]Mirror, error) {
	return s.listMirrors(ctx, owner, CollPhoneNumbers)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func ownerQuery(q *mongo.QueryBuilder, owner Owner) *mongo.QueryBuilder {
	return q.Eq("parent.parent.id", owner.UserID).Eq("parent.id", owner.WorkspaceID)
}
