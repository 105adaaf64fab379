package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/reconciler"
	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/audit"
	"github.com/troikatech/agent-console/pkg/env"
	"github.com/troikatech/agent-console/pkg/errors"
	"github.com/troikatech/agent-console/pkg/middleware"
	"github.com/troikatech/agent-console/pkg/millis"
	"github.com/troikatech/agent-console/pkg/storage"
)

const storeTimeout = 5 * time.Second

// Platform is the subset of the agent platform client the handlers call.
type Platform interface {
	CreateAgent(ctx context.Context, name string, config millis.AgentConfig) (millis.Resource, error)
	GetAgent(ctx context.Context, agentID string) (millis.Resource, error)
	UpdateAgent(ctx context.Context, agentID, name string, config millis.AgentConfig) error

	ListVoices(ctx context.Context, language string) (json.RawMessage, error)

	ListKnowledgeBases(ctx context.Context) (json.RawMessage, error)
	CreateKnowledgeBase(ctx context.Context, params millis.KnowledgeBaseParams) (millis.Resource, error)
	UploadKnowledgeBase(ctx context.Context, name string, files []millis.UploadFile) (millis.Resource, error)
	RefreshKnowledgeBase(ctx context.Context, id string) error
	DeleteKnowledgeBase(ctx context.Context, id string) error

	ListPhoneNumbers(ctx context.Context) (json.RawMessage, error)
	CreatePhoneNumber(ctx context.Context, areaCode string) (millis.Resource, error)
	UpdatePhoneNumber(ctx context.Context, phoneNumber string, update millis.PhoneNumberUpdate) (millis.Resource, error)
	DeletePhoneNumber(ctx context.Context, phoneNumber string) error

	OutboundCall(ctx context.Context, fromNumber, toNumber string) (json.RawMessage, error)
	StartWebCall(ctx context.Context, agentID string) (string, error)
	WebRTCOffer(ctx context.Context, agentID string, offer webrtc.SessionDescription) (json.RawMessage, error)
	WebRTCICECandidate(ctx context.Context, agentID string, candidate webrtc.ICECandidateInit) (json.RawMessage, error)
}

// Stager downloads knowledge-base documents to local files.
type Stager interface {
	Stage(ctx context.Context, urls []string) (*storage.Batch, error)
}

// Deps are the collaborators built once in main.
type Deps struct {
	Config     *env.Config
	Platform   Platform
	Store      tenant.Store
	Resolver   *tenant.Resolver
	Reconciler *reconciler.Reconciler
	Stager     Stager
	Audit      audit.Recorder
	Redis      *redis.Client
	Logger     *zap.Logger
}

type Handler struct {
	cfg        *env.Config
	platform   Platform
	store      tenant.Store
	resolver   *tenant.Resolver
	reconciler *reconciler.Reconciler
	stager     Stager
	audit      audit.Recorder
	redis      *redis.Client
	logger     *zap.Logger
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		cfg:        d.Config,
		platform:   d.Platform,
		store:      d.Store,
		resolver:   d.Resolver,
		reconciler: d.Reconciler,
		stager:     d.Stager,
		audit:      d.Audit,
		redis:      d.Redis,
		logger:     d.Logger,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.cfg == nil {
		h.cfg = &env.Config{VoiceLanguage: "en", VoiceCacheTTLSec: 600}
	}
	if h.audit == nil {
		h.audit = audit.NewLogRecorder(h.logger)
	}
	if h.resolver == nil {
		h.resolver = tenant.NewResolver(h.store, h.logger)
	}
	if h.reconciler == nil {
		h.reconciler = reconciler.New(h.resolver, h.store, h.logger)
	}
	return h
}

// tenantOwner validates the owner named by a request and checks it against
// the bearer token. It writes the error response itself.
func (h *Handler) tenantOwner(c *gin.Context, userID, workspaceID string) (tenant.Owner, bool) {
	owner := tenant.Owner{UserID: userID, WorkspaceID: workspaceID}
	if err := owner.Validate(); err != nil {
		errors.BadRequest(c, err.Error())
		return tenant.Owner{}, false
	}
	if !middleware.TenantAllowed(c, userID) {
		errors.Forbidden(c, "token does not grant access to this tenant")
		return tenant.Owner{}, false
	}
	return owner, true
}

func (h *Handler) platformFailure(c *gin.Context, err error, fallback string) {
	if millis.IsNotFound(err) {
		errors.NotFound(c, fallback+": not found on the agent platform")
		return
	}
	errors.UpstreamError(c, err, h.logger, fallback, millis.PlatformMessage(err))
}

func (h *Handler) record(c *gin.Context, owner tenant.Owner, action audit.Action, resourceType, resourceID string, metadata map[string]interface{}) {
	h.audit.Record(c.Request.Context(), audit.Entry{
		UserID:       owner.UserID,
		WorkspaceID:  owner.WorkspaceID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
	})
}

// toMap converts a typed value to the generic form stored in the tenant tree.
func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
