package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/pkg/mongo"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionResync Action = "resync"
	ActionCall   Action = "call"
)

const Collection = "audit_log"

type Entry struct {
	ID           string                 `json:"id" bson:"_id"`
	UserID       string                 `json:"user_id,omitempty" bson:"user_id,omitempty"`
	WorkspaceID  string                 `json:"workspace_id,omitempty" bson:"workspace_id,omitempty"`
	Action       Action                 `json:"action" bson:"action"`
	ResourceType string                 `json:"resource_type" bson:"resource_type"`
	ResourceID   string                 `json:"resource_id" bson:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at" bson:"created_at"`
}

// Recorder stores audit entries. Recording never fails the caller's request,
// so implementations log their own errors.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

func stamp(entry *Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

type MongoRecorder struct {
	db     *mongo.Client
	logger *zap.Logger
}

func NewMongoRecorder(db *mongo.Client, logger *zap.Logger) *MongoRecorder {
	return &MongoRecorder{db: db, logger: logger}
}

func (r *MongoRecorder) Record(ctx context.Context, entry Entry) {
	stamp(&entry)

	// detached so a cancelled request still leaves a trail
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := r.db.NewQuery(Collection).Insert(ctx, entry); err != nil {
		r.logger.Error("Failed to record audit event",
			zap.Error(err),
			zap.String("action", string(entry.Action)),
			zap.String("resource_type", entry.ResourceType),
			zap.String("resource_id", entry.ResourceID),
		)
	}
}

// LogRecorder writes entries to the log only, used with the memory store.
type LogRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, entry Entry) {
	stamp(&entry)
	r.logger.Info("Audit",
		zap.String("action", string(entry.Action)),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
		zap.String("user_id", entry.UserID),
		zap.String("workspace_id", entry.WorkspaceID),
	)
}

// MemoryRecorder keeps entries for tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *MemoryRecorder) Record(ctx context.Context, entry Entry) {
	stamp(&entry)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *MemoryRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
