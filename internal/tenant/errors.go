package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no document matched. Webhooks treat it as benign.
	ErrNotFound = errors.New("not found")

	// ErrCorruptHierarchy means a document exists but its owner chain is broken.
	ErrCorruptHierarchy = errors.New("corrupt hierarchy")

	ErrInvalidPath = errors.New("invalid tenant path")

	ErrEmptyAgentID = errors.New("agent id is required")
)

// HierarchyError names the level of the owner chain that is missing.
type HierarchyError struct {
	AgentID string
	Path    string
	Missing string // "workspace", "user" or "owner index"
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("corrupt hierarchy: agent %q at %q has no %s reference", e.AgentID, e.Path, e.Missing)
}

func (e *HierarchyError) Unwrap() error {
	return ErrCorruptHierarchy
}
