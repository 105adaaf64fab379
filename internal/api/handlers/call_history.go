package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/callhistory"
	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/errors"
	"github.com/troikatech/agent-console/pkg/utils"
)

const statsTimeout = 30 * time.Second

func (h *Handler) queryOwner(c *gin.Context) (tenant.Owner, bool) {
	userID, workspaceID := c.Query("user_id"), c.Query("workspace_id")
	if userID == "" || workspaceID == "" {
		errors.BadRequest(c, "User ID and workspace ID are required")
		return tenant.Owner{}, false
	}
	return h.tenantOwner(c, userID, workspaceID)
}

// ListCallHistory returns stored calls newest first.
func (h *Handler) ListCallHistory(c *gin.Context) {
	owner, ok := h.queryOwner(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	records, err := h.store.ListCallRecords(ctx, owner, utils.ParseLimit(c))
	if err != nil {
		errors.InternalError(c, err, h.logger, "Failed to list call history")
		return
	}

	calls := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		calls = append(calls, rec.Call)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"calls":   calls,
	})
}

func (h *Handler) GetCall(c *gin.Context) {
	owner, ok := h.queryOwner(c)
	if !ok {
		return
	}
	callID := c.Query("call_id")
	if callID == "" {
		errors.BadRequest(c, "Call ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	rec, err := h.store.GetCallRecord(ctx, owner, callID)
	if err != nil {
		switch {
		case stderrors.Is(err, tenant.ErrNotFound):
			errors.NotFound(c, "call not found")
		case stderrors.Is(err, tenant.ErrInvalidPath):
			errors.BadRequest(c, err.Error())
		default:
			errors.InternalError(c, err, h.logger, "Failed to retrieve call")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"call":    rec.Call,
	})
}

// CallStats summarizes every call stored for a workspace.
func (h *Handler) CallStats(c *gin.Context) {
	owner, ok := h.queryOwner(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	var acc callhistory.Accumulator
	err := h.store.EachCallRecord(ctx, owner, func(rec tenant.CallRecord) error {
		call, err := callhistory.FromRecord(rec)
		if err != nil {
			h.logger.Warn("Counting call record with unreadable fields", zap.String("call_id", rec.CallID), zap.Error(err))
		}
		acc.Add(call)
		return nil
	})
	if err != nil {
		errors.InternalError(c, err, h.logger, "Failed to compute call stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   acc.Stats(),
	})
}
