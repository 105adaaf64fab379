// Package reconciler turns platform call events into call records under the
// workspace that owns the call's agent.
package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/logger"
	"github.com/troikatech/agent-console/pkg/metrics"
)

// EventCallAnalyzed is the only event that produces a call record.
const EventCallAnalyzed = "call_analyzed"

type Outcome string

const (
	Ignored   Outcome = "ignored"
	Rejected  Outcome = "rejected"
	Persisted Outcome = "persisted"
	Faulted   Outcome = "faulted"
)

// HTTPStatus is the acknowledgement the sender receives for an outcome.
// 200 tells it not to retry; 500 invites a retry.
func (o Outcome) HTTPStatus() int {
	switch o {
	case Ignored, Persisted:
		return http.StatusOK
	case Rejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Event is a decoded webhook envelope. Call stays nil when the body had no
// JSON object under "call".
type Event struct {
	Type string
	Call map[string]interface{}

	malformed string
}

// Result describes how one event was handled.
type Result struct {
	Outcome Outcome
	Owner   tenant.Owner
	CallID  string
	AgentID string
	Reason  string
	Err     error
}

// ParseEvent decodes a webhook body. It never fails: a body that is not a
// JSON object yields an event that Reconcile rejects.
func ParseEvent(body []byte) Event {
	var envelope struct {
		Event string          `json:"event"`
		Call  json.RawMessage `json:"call"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{malformed: "body is not a JSON object"}
	}

	ev := Event{Type: envelope.Event}

	raw := bytes.TrimSpace(envelope.Call)
	if len(raw) == 0 || raw[0] != '{' {
		return ev
	}

	var call map[string]interface{}
	if err := json.Unmarshal(raw, &call); err != nil {
		ev.malformed = "call is not a JSON object"
		return ev
	}
	ev.Call = call
	return ev
}

// Resolver finds the owner of an agent id.
type Resolver interface {
	Resolve(ctx context.Context, agentID string) (tenant.Owner, error)
}

// CallWriter stores call records.
type CallWriter interface {
	PutCallRecord(ctx context.Context, owner tenant.Owner, callID, agentID string, call map[string]interface{}) error
}

type Reconciler struct {
	resolver Resolver
	calls    CallWriter
	logger   *zap.Logger
}

func New(resolver Resolver, calls CallWriter, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{resolver: resolver, calls: calls, logger: log}
}

// Reconcile runs Received -> Filtered -> Resolved -> Persisted, stopping
// early at Ignored, Rejected or Faulted. A persisted event causes exactly
// one create-or-overwrite write keyed by call id.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) Result {
	res := r.reconcile(ctx, ev)
	metrics.RecordWebhookOutcome(string(res.Outcome))
	r.log(ev, res)
	return res
}

func (r *Reconciler) reconcile(ctx context.Context, ev Event) Result {
	if ev.malformed != "" {
		return Result{Outcome: Rejected, Reason: ev.malformed}
	}

	// Filtered
	if ev.Type != EventCallAnalyzed {
		return Result{Outcome: Ignored, Reason: fmt.Sprintf("event %q is not %s", ev.Type, EventCallAnalyzed)}
	}

	if ev.Call == nil {
		return Result{Outcome: Rejected, Reason: "missing call object"}
	}

	agentID, _ := ev.Call["agent_id"].(string)
	callID, _ := ev.Call["call_id"].(string)
	res := Result{AgentID: agentID, CallID: callID}

	if agentID == "" || callID == "" {
		res.Outcome = Rejected
		res.Reason = "missing agent_id or call_id"
		return res
	}

	// Resolved
	owner, err := r.resolver.Resolve(ctx, agentID)
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		res.Outcome = Ignored
		res.Reason = "agent not found"
		return res
	case err != nil:
		res.Outcome = Faulted
		res.Reason = "ownership resolution failed"
		res.Err = err
		return res
	}
	res.Owner = owner

	// Persisted
	if err := r.calls.PutCallRecord(ctx, owner, callID, agentID, ev.Call); err != nil {
		res.Outcome = Faulted
		res.Reason = "call record write failed"
		res.Err = err
		return res
	}

	res.Outcome = Persisted
	return res
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, tenant.ErrCorruptHierarchy):
		return "corrupt_hierarchy"
	case errors.Is(err, tenant.ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "store"
	}
}

func (r *Reconciler) log(ev Event, res Result) {
	fields := []zap.Field{
		zap.String("event", ev.Type),
		zap.String("outcome", string(res.Outcome)),
		zap.String("agent_id", res.AgentID),
		zap.String("call_id", res.CallID),
	}
	if res.Reason != "" {
		fields = append(fields, zap.String("reason", res.Reason))
	}

	switch res.Outcome {
	case Persisted:
		fields = append(fields, logger.Owner(res.Owner.UserID, res.Owner.WorkspaceID))
		r.logger.Info("Call record persisted", fields...)
	case Ignored:
		r.logger.Info("Webhook event ignored", fields...)
	case Rejected:
		r.logger.Warn("Webhook event rejected", fields...)
	case Faulted:
		fields = append(fields, zap.String("error_kind", errorKind(res.Err)), zap.Error(res.Err))
		r.logger.Error("Webhook event faulted", fields...)
	}
}
