package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/audit"
	"github.com/troikatech/agent-console/pkg/errors"
	"github.com/troikatech/agent-console/pkg/logger"
	"github.com/troikatech/agent-console/pkg/middleware"
	"github.com/troikatech/agent-console/pkg/millis"
	"github.com/troikatech/agent-console/pkg/validation"
)

type OutboundCallRequest struct {
	FromPhoneNumber string `json:"from_phone_number" binding:"required"`
	ToPhoneNumber   string `json:"to_phone_number" binding:"required"`
}

func (h *Handler) MakeOutboundCall(c *gin.Context) {
	var req OutboundCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	from, err := validation.NormalizeE164(req.FromPhoneNumber)
	if err != nil {
		errors.BadRequest(c, "from_phone_number: "+err.Error())
		return
	}
	to, err := validation.NormalizeE164(req.ToPhoneNumber)
	if err != nil {
		errors.BadRequest(c, "to_phone_number: "+err.Error())
		return
	}

	call, err := h.platform.OutboundCall(c.Request.Context(), from, to)
	if err != nil {
		h.platformFailure(c, err, "Failed to make outbound call")
		return
	}

	h.logger.Info("Outbound call placed",
		logger.MaskPhone("from", from),
		logger.MaskPhone("to", to),
	)
	h.record(c, tenant.Owner{UserID: middleware.AuthenticatedUser(c)}, audit.ActionCall, "outbound_call", from, nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"call":    call,
	})
}

type StartWebCallRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

func (h *Handler) StartWebCall(c *gin.Context) {
	var req StartWebCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, "Agent ID is required")
		return
	}

	token, err := h.platform.StartWebCall(c.Request.Context(), req.AgentID)
	if err != nil {
		h.platformFailure(c, err, "Failed to start web call")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"accessToken": token,
	})
}

type WebRTCOfferRequest struct {
	AgentID string                     `json:"agent_id" binding:"required"`
	Offer   *webrtc.SessionDescription `json:"offer" binding:"required"`
}

// WebRTCOffer relays a browser offer to the platform. Media never passes
// through this server.
func (h *Handler) WebRTCOffer(c *gin.Context) {
	var req WebRTCOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, "Missing required fields")
		return
	}

	if err := millis.ValidateOffer(*req.Offer); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	answer, err := h.platform.WebRTCOffer(c.Request.Context(), req.AgentID, *req.Offer)
	if err != nil {
		h.platformFailure(c, err, "Failed to handle WebRTC offer")
		return
	}

	h.logger.Debug("Relayed WebRTC offer", zap.String("agent_id", req.AgentID))
	c.Data(http.StatusOK, "application/json; charset=utf-8", answer)
}

type ICECandidateRequest struct {
	AgentID   string                   `json:"agent_id" binding:"required"`
	Candidate *webrtc.ICECandidateInit `json:"candidate" binding:"required"`
}

func (h *Handler) WebRTCICECandidate(c *gin.Context) {
	var req ICECandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, "Missing required fields")
		return
	}

	if err := millis.ValidateCandidate(*req.Candidate); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	out, err := h.platform.WebRTCICECandidate(c.Request.Context(), req.AgentID, *req.Candidate)
	if err != nil {
		h.platformFailure(c, err, "Failed to handle ICE candidate")
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}
