package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/audit"
	"github.com/troikatech/agent-console/pkg/errors"
	"github.com/troikatech/agent-console/pkg/middleware"
	"github.com/troikatech/agent-console/pkg/millis"
	"github.com/troikatech/agent-console/pkg/validation"
)

type CreatePhoneNumberRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	WorkspaceID string `json:"workspace_id" binding:"required"`
	AreaCode    string `json:"area_code" binding:"required"`
}

func (h *Handler) CreatePhoneNumber(c *gin.Context) {
	var req CreatePhoneNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateAreaCode(req.AreaCode); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	owner, ok := h.tenantOwner(c, req.UserID, req.WorkspaceID)
	if !ok {
		return
	}

	number, err := h.platform.CreatePhoneNumber(c.Request.Context(), req.AreaCode)
	if err != nil {
		h.platformFailure(c, err, "Failed to create phone number")
		return
	}

	phone := number.String("phone_number")
	if phone == "" {
		errors.InternalError(c, fmt.Errorf("phone number response has no phone_number"), h.logger, "Failed to create phone number")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.store.PutPhoneNumber(ctx, owner, phone, number); err != nil {
		errors.InternalError(c, err, h.logger, "Failed to create phone number")
		return
	}

	h.record(c, owner, audit.ActionCreate, "phone_number", phone, map[string]interface{}{"area_code": req.AreaCode})

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"phone_number": number,
	})
}

type UpdatePhoneNumberRequest struct {
	UserID          string  `json:"user_id" binding:"required"`
	WorkspaceID     string  `json:"workspace_id" binding:"required"`
	PhoneNumber     string  `json:"phone_number" binding:"required"`
	Nickname        *string `json:"nickname"`
	InboundAgentID  *string `json:"inbound_agent_id"`
	OutboundAgentID *string `json:"outbound_agent_id"`
}

func (h *Handler) UpdatePhoneNumber(c *gin.Context) {
	var req UpdatePhoneNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	phone, err := validation.NormalizeE164(req.PhoneNumber)
	if err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	owner, ok := h.tenantOwner(c, req.UserID, req.WorkspaceID)
	if !ok {
		return
	}

	number, err := h.platform.UpdatePhoneNumber(c.Request.Context(), phone, millis.PhoneNumberUpdate{
		Nickname:        req.Nickname,
		InboundAgentID:  req.InboundAgentID,
		OutboundAgentID: req.OutboundAgentID,
	})
	if err != nil {
		h.platformFailure(c, err, "Failed to update phone number")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	stored := number.String("phone_number")
	if stored == "" {
		stored = phone
	}
	if err := h.store.PutPhoneNumber(ctx, owner, stored, number); err != nil {
		errors.InternalError(c, err, h.logger, "Failed to update phone number")
		return
	}

	h.record(c, owner, audit.ActionUpdate, "phone_number", phone, nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Phone number updated successfully",
	})
}

func (h *Handler) DeletePhoneNumber(c *gin.Context) {
	phone := c.Param("phone_number")

	if err := h.platform.DeletePhoneNumber(c.Request.Context(), phone); err != nil {
		h.platformFailure(c, err, "Failed to delete phone number")
		return
	}

	h.record(c, tenant.Owner{UserID: middleware.AuthenticatedUser(c)}, audit.ActionDelete, "phone_number", phone, nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Phone number deleted successfully",
	})
}

func (h *Handler) ListPhoneNumbers(c *gin.Context) {
	userID, workspaceID := c.Query("user_id"), c.Query("workspace_id")
	if userID == "" && workspaceID == "" {
		h.relayList(c, h.platform.ListPhoneNumbers, "Failed to list phone numbers")
		return
	}

	owner, ok := h.tenantOwner(c, userID, workspaceID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	mirrors, err := h.store.ListPhoneNumbers(ctx, owner)
	if err != nil {
		errors.InternalError(c, err, h.logger, "Failed to list phone numbers")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"phone_numbers": mirrorItems(mirrors),
	})
}
