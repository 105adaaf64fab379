package tenant

import "time"

// Owner is the (tenant, workspace) pair a resource belongs to.
type Owner struct {
	UserID      string `json:"user_id" bson:"user_id"`
	WorkspaceID string `json:"workspace_id" bson:"workspace_id"`
}

// ParentRef points from a document to its container's owning document.
// An agent carries {workspaces, W, {users, U, nil}}.
type ParentRef struct {
	Collection string     `json:"collection" bson:"collection"`
	ID         string     `json:"id" bson:"id"`
	Parent     *ParentRef `json:"parent,omitempty" bson:"parent,omitempty"`
}

// WorkspaceRef builds the parent chain for a child of o's workspace.
func WorkspaceRef(o Owner) *ParentRef {
	return &ParentRef{
		Collection: CollWorkspaces,
		ID:         o.WorkspaceID,
		Parent: &ParentRef{
			Collection: CollUsers,
			ID:         o.UserID,
		},
	}
}

// owner walks ref two levels up: workspace, then user.
func (ref *ParentRef) owner(agentID, path string) (Owner, error) {
	if ref == nil || ref.Collection != CollWorkspaces || !validSegment(ref.ID) {
		return Owner{}, &HierarchyError{AgentID: agentID, Path: path, Missing: "workspace"}
	}

	user := ref.Parent
	if user == nil || user.Collection != CollUsers || !validSegment(user.ID) {
		return Owner{}, &HierarchyError{AgentID: agentID, Path: path, Missing: "user"}
	}

	return Owner{UserID: user.ID, WorkspaceID: ref.ID}, nil
}

type User struct {
	Path      string    `json:"path" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Workspace struct {
	Path        string     `json:"path" bson:"_id"`
	WorkspaceID string     `json:"workspace_id" bson:"workspace_id"`
	Parent      *ParentRef `json:"parent" bson:"parent"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
}

// Agent mirrors a platform agent under its workspace.
type Agent struct {
	Path      string                 `json:"path" bson:"_id"`
	AgentID   string                 `json:"agent_id" bson:"agent_id"`
	Name      string                 `json:"name" bson:"name"`
	Config    map[string]interface{} `json:"config" bson:"config"`
	Platform  map[string]interface{} `json:"platform,omitempty" bson:"platform,omitempty"`
	Parent    *ParentRef             `json:"parent" bson:"parent"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// AgentPatch holds the metadata fields an update merges into an agent.
type AgentPatch struct {
	Name      string
	Config    map[string]interface{}
	UpdatedAt time.Time
}

// CallRecord stores one completed call. Call is the platform's call object
// exactly as delivered.
type CallRecord struct {
	Path       string                 `json:"path" bson:"_id"`
	CallID     string                 `json:"call_id" bson:"call_id"`
	AgentID    string                 `json:"agent_id" bson:"agent_id"`
	Parent     *ParentRef             `json:"parent" bson:"parent"`
	ReceivedAt time.Time              `json:"received_at" bson:"received_at"`
	Call       map[string]interface{} `json:"call" bson:"call"`
}

// Mirror is a knowledge base or phone number copied from the platform.
type Mirror struct {
	Path      string                 `json:"path" bson:"_id"`
	ID        string                 `json:"id" bson:"resource_id"`
	Kind      string                 `json:"kind,omitempty" bson:"kind,omitempty"`
	Data      map[string]interface{} `json:"data" bson:"data"`
	Parent    *ParentRef             `json:"parent" bson:"parent"`
	CreatedBy string                 `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// OwnerEntry is one row of the agent_id -> owner index.
type OwnerEntry struct {
	AgentID     string    `json:"agent_id" bson:"_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	WorkspaceID string    `json:"workspace_id" bson:"workspace_id"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

func (e OwnerEntry) Owner() Owner {
	return Owner{UserID: e.UserID, WorkspaceID: e.WorkspaceID}
}
