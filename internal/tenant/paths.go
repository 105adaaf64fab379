package tenant

import (
	"fmt"
	"strings"
)

const (
	CollUsers          = "users"
	CollWorkspaces     = "workspaces"
	CollAgents         = "agents"
	CollKnowledgeBases = "knowledge_bases"
	CollPhoneNumbers   = "phone_numbers"
	CollCallHistory    = "call_history"
)

var childCollections = map[string]bool{
	CollAgents:         true,
	CollKnowledgeBases: true,
	CollPhoneNumbers:   true,
	CollCallHistory:    true,
}

func validSegment(s string) bool {
	return strings.TrimSpace(s) != "" && !strings.Contains(s, "/")
}

// Validate rejects empty ids and ids that would break the path layout.
func (o Owner) Validate() error {
	if !validSegment(o.UserID) {
		return fmt.Errorf("%w: invalid user_id %q", ErrInvalidPath, o.UserID)
	}
	if !validSegment(o.WorkspaceID) {
		return fmt.Errorf("%w: invalid workspace_id %q", ErrInvalidPath, o.WorkspaceID)
	}
	return nil
}

func UserPath(userID string) string {
	return CollUsers + "/" + userID
}

func WorkspacePath(o Owner) string {
	return UserPath(o.UserID) + "/" + CollWorkspaces + "/" + o.WorkspaceID
}

// DocPath is users/{u}/workspaces/{w}/{collection}/{id}.
func DocPath(o Owner, collection, id string) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	if !childCollections[collection] {
		return "", fmt.Errorf("%w: unknown collection %q", ErrInvalidPath, collection)
	}
	if !validSegment(id) {
		return "", fmt.Errorf("%w: invalid %s id %q", ErrInvalidPath, collection, id)
	}
	return WorkspacePath(o) + "/" + collection + "/" + id, nil
}

// ParsePath splits a child document path back into its parts.
func ParsePath(path string) (Owner, string, string, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 6 || parts[0] != CollUsers || parts[2] != CollWorkspaces || !childCollections[parts[4]] {
		return Owner{}, "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	o := Owner{UserID: parts[1], WorkspaceID: parts[3]}
	if err := o.Validate(); err != nil {
		return Owner{}, "", "", err
	}
	if !validSegment(parts[5]) {
		return Owner{}, "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return o, parts[4], parts[5], nil
}
