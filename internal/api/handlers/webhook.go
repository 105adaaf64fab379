package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/reconciler"
	"github.com/troikatech/agent-console/pkg/webhook"
)

// MaxWebhookBytes bounds a webhook body. Analyzed calls carry the full
// transcript.
const MaxWebhookBytes = 5 << 20

var outcomeText = map[reconciler.Outcome]string{
	reconciler.Ignored:   "OK",
	reconciler.Persisted: "OK",
	reconciler.Rejected:  "Bad Request: Missing agent_id or call_id.",
	reconciler.Faulted:   "Internal Server Error",
}

// Webhook receives platform events and records analyzed calls under the
// owning workspace.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBytes+1))
	if err != nil {
		c.String(http.StatusBadRequest, "Bad Request: unreadable body")
		return
	}
	if len(body) > MaxWebhookBytes {
		c.String(http.StatusRequestEntityTooLarge, "Payload Too Large")
		return
	}

	if h.cfg.WebhookSecret != "" {
		if err := webhook.VerifySignature(h.cfg.WebhookSecret, body, c.GetHeader(webhook.SignatureHeader)); err != nil {
			h.logger.Warn("Rejected webhook signature", zap.Error(err))
			c.String(http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	res := h.reconciler.Reconcile(c.Request.Context(), reconciler.ParseEvent(body))

	text := outcomeText[res.Outcome]
	if res.Outcome == reconciler.Rejected && res.Reason != "" {
		text = "Bad Request: " + res.Reason
	}
	c.String(res.Outcome.HTTPStatus(), text)
}
