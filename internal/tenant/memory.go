package tenant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps the hierarchy in process. It backs tests and
// STORE_DRIVER=memory development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	users      map[string]User
	workspaces map[string]Workspace
	agents     map[string]Agent
	owners     map[string]OwnerEntry
	calls      map[string]CallRecord
	mirrors    map[string]Mirror

	callWrites int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		users:      make(map[string]User),
		workspaces: make(map[string]Workspace),
		agents:     make(map[string]Agent),
		owners:     make(map[string]OwnerEntry),
		calls:      make(map[string]CallRecord),
		mirrors:    make(map[string]Mirror),
	}
}

// CallWrites reports how many times PutCallRecord wrote.
func (s *MemoryStore) CallWrites() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callWrites
}

// CallRecordCount reports how many call records are stored across tenants.
func (s *MemoryStore) CallRecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

func (s *MemoryStore) EnsureWorkspace(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	userPath := UserPath(owner.UserID)
	if _, ok := s.users[userPath]; !ok {
		s.users[userPath] = User{Path: userPath, UserID: owner.UserID, CreatedAt: now}
	}

	wsPath := WorkspacePath(owner)
	if _, ok := s.workspaces[wsPath]; !ok {
		s.workspaces[wsPath] = Workspace{
			Path:        wsPath,
			WorkspaceID: owner.WorkspaceID,
			Parent:      &ParentRef{Collection: CollUsers, ID: owner.UserID},
			CreatedAt:   now,
		}
	}
	return nil
}

func (s *MemoryStore) CreateAgent(ctx context.Context, agent Agent) error {
	if agent.Path == "" || agent.AgentID == "" {
		return fmt.Errorf("%w: agent needs path and agent_id", ErrInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.Path] = agent
	return nil
}

func (s *MemoryStore) MergeAgent(ctx context.Context, owner Owner, agentID string, patch AgentPatch) (bool, error) {
	path, err := DocPath(owner, CollAgents, agentID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[path]
	if !ok {
		agent = Agent{
			Path:      path,
			AgentID:   agentID,
			Parent:    WorkspaceRef(owner),
			CreatedAt: s.now().UTC(),
		}
	}
	agent.Name = patch.Name
	agent.Config = patch.Config
	agent.UpdatedAt = patch.UpdatedAt.UTC()
	s.agents[path] = agent
	return !ok, nil
}

func (s *MemoryStore) GetAgent(ctx context.Context, owner Owner, agentID string) (*Agent, error) {
	path, err := DocPath(owner, CollAgents, agentID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &agent, nil
}

func (s *MemoryStore) ListAgents(ctx context.Context, owner Owner) ([]Agent, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	prefix := WorkspacePath(owner) + "/" + CollAgents + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Agent
	for path, agent := range s.agents {
		if strings.HasPrefix(path, prefix) {
			out = append(out, agent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindLatestAgent(ctx context.Context, agentID string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Agent
	for _, agent := range s.agents {
		if agent.AgentID != agentID {
			continue
		}
		if latest == nil || agent.CreatedAt.After(latest.CreatedAt) {
			a := agent
			latest = &a
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) EachAgent(ctx context.Context, fn func(Agent) error) error {
	s.mu.RLock()
	agents := make([]Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	s.mu.RUnlock()

	sort.Slice(agents, func(i, j int) bool { return agents[i].CreatedAt.Before(agents[j].CreatedAt) })
	for _, a := range agents {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) LookupOwner(ctx context.Context, agentID string) (*OwnerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.owners[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (s *MemoryStore) PutOwner(ctx context.Context, entry OwnerEntry) (*OwnerEntry, error) {
	if entry.AgentID == "" {
		return nil, fmt.Errorf("%w: owner entry needs agent_id", ErrInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.owners[entry.AgentID]
	s.owners[entry.AgentID] = entry
	if !had {
		return nil, nil
	}
	return &prev, nil
}

func (s *MemoryStore) DeleteOwner(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owners, agentID)
	return nil
}

func (s *MemoryStore) PutCallRecord(ctx context.Context, owner Owner, callID, agentID string, call map[string]interface{}) error {
	path, err := DocPath(owner, CollCallHistory, callID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[path] = CallRecord{
		Path:       path,
		CallID:     callID,
		AgentID:    agentID,
		Parent:     WorkspaceRef(owner),
		ReceivedAt: s.now().UTC(),
		Call:       call,
	}
	s.callWrites++
	return nil
}

func (s *MemoryStore) GetCallRecord(ctx context.Context, owner Owner, callID string) (*CallRecord, error) {
	path, err := DocPath(owner, CollCallHistory, callID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.calls[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) ListCallRecords(ctx context.Context, owner Owner, limit int) ([]CallRecord, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	prefix := WorkspacePath(owner) + "/" + CollCallHistory + "/"

	s.mu.RLock()
	var out []CallRecord
	for path, rec := range s.calls {
		if strings.HasPrefix(path, prefix) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return startTimestamp(out[i].Call) > startTimestamp(out[j].Call)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) EachCallRecord(ctx context.Context, owner Owner, fn func(CallRecord) error) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	prefix := WorkspacePath(owner) + "/" + CollCallHistory + "/"

	s.mu.RLock()
	var records []CallRecord
	for path, rec := range s.calls {
		if strings.HasPrefix(path, prefix) {
			records = append(records, rec)
		}
	}
	s.mu.RUnlock()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) putMirror(owner Owner, collection, id, kind, createdBy string, data map[string]interface{}) error {
	path, err := DocPath(owner, collection, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	m, ok := s.mirrors[path]
	if !ok {
		m = Mirror{Path: path, ID: id, Parent: WorkspaceRef(owner), CreatedAt: now, CreatedBy: createdBy}
	}
	m.UpdatedAt = now
	if kind != "" {
		m.Kind = kind
	}
	m.Data = data
	s.mirrors[path] = m
	return nil
}

func (s *MemoryStore) listMirrors(owner Owner, collection string) ([]Mirror, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	prefix := WorkspacePath(owner) + "/" + collection + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Mirror
	for path, m := range s.mirrors {
		if strings.HasPrefix(path, prefix) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PutKnowledgeBase(ctx context.Context, owner Owner, kbID, kind, createdBy string, data map[string]interface{}) error {
	return s.putMirror(owner, CollKnowledgeBases, kbID, kind, createdBy, data)
}

func (s *MemoryStore) ListKnowledgeBases(ctx context.Context, owner Owner) ([]Mirror, error) {
	return s.listMirrors(owner, CollKnowledgeBases)
}

func (s *MemoryStore) PutPhoneNumber(ctx context.Context, owner Owner, number string, data map[string]interface{}) error {
	return s.putMirror(owner, CollPhoneNumbers, number, "", "", data)
}

func (s *MemoryStore) ListPhoneNumbers(ctx context.Context, owner Owner) ([]Mirror, error) {
	return s.listMirrors(owner, CollPhoneNumbers)
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
