package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/audit"
	"github.com/troikatech/agent-console/pkg/errors"
	"github.com/troikatech/agent-console/pkg/millis"
)

const defaultAgentName = "New Agent"

type VoiceSelection struct {
	Provider string `json:"provider" binding:"required"`
	VoiceID  string `json:"voice_id" binding:"required"`
	Model    string `json:"model"`
}

type CreateAgentData struct {
	Name  string          `json:"name"`
	Voice *VoiceSelection `json:"voice" binding:"required"`
}

type CreateAgentRequest struct {
	UserID      string           `json:"user_id" binding:"required"`
	WorkspaceID string           `json:"workspace_id" binding:"required"`
	AgentData   *CreateAgentData `json:"agent_data" binding:"required"`
}

func (h *Handler) CreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	owner, ok := h.tenantOwner(c, req.UserID, req.WorkspaceID)
	if !ok {
		return
	}

	name := req.AgentData.Name
	if name == "" {
		name = defaultAgentName
	}
	voice := req.AgentData.Voice
	config := millis.NewAgentConfig(voice.Provider, voice.VoiceID, voice.Model)

	created, err := h.platform.CreateAgent(c.Request.Context(), name, config)
	if err != nil {
		h.platformFailure(c, err, "Failed to create agent")
		return
	}
	agentID := created.String("id")

	stored, ok := created["config"].(map[string]interface{})
	if !ok {
		if stored, err = toMap(config); err != nil {
			errors.InternalError(c, err, h.logger, "Failed to create agent")
			return
		}
	}

	agent, err := tenant.NewAgent(owner, agentID, name, stored, created, time.Now())
	if err != nil {
		errors.InternalError(c, err, h.logger, "Failed to create agent")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.resolver.RegisterAgent(ctx, agent); err != nil {
		// the platform agent exists but no tenant owns it
		h.logger.Error("Agent created on platform but not stored",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		errors.InternalError(c, err, h.logger, "Failed to create agent")
		return
	}

	h.record(c, owner, audit.ActionCreate, "agent", agentID, map[string]interface{}{"name": name})

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"agent_id": agentID,
		"agent":    created,
	})
}

type voiceUpdate struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voice_id"`
	Model    string `json:"model"`
}

type flowUpdate struct {
	Interruption struct {
		Allowed *bool `json:"allowed"`
	} `json:"interruption"`
	ResponseDelay      int                  `json:"response_delay"`
	AgentTerminateCall millis.TerminateCall `json:"agent_terminate_call"`
	CallTransfer       millis.CallTransfer  `json:"call_transfer"`
	DTMFDial           millis.DTMFDial      `json:"dtmf_dial"`
	InactivityHandling struct {
		IdleTime int `json:"idle_time"`
	} `json:"inactivity_handling"`
}

type AgentConfigUpdate struct {
	Prompt             string                   `json:"prompt"`
	Voice              voiceUpdate              `json:"voice"`
	Flow               flowUpdate               `json:"flow"`
	FirstMessage       string                   `json:"first_message"`
	Tools              []map[string]interface{} `json:"tools"`
	Language           string                   `json:"language"`
	SessionDataWebhook string                   `json:"session_data_webhook"`
	ExtraPromptWebhook string                   `json:"extra_prompt_webhook"`
}

type UpdateAgentData struct {
	ID     string            `json:"id" binding:"required"`
	Name   string            `json:"name" binding:"required"`
	Config AgentConfigUpdate `json:"config"`
}

type UpdateAgentRequest struct {
	UserID      string           `json:"user_id" binding:"required"`
	WorkspaceID string           `json:"workspace_id" binding:"required"`
	AgentData   *UpdateAgentData `json:"agent_data" binding:"required"`
}

func (u AgentConfigUpdate) agentUpdate() millis.AgentUpdate {
	return millis.AgentUpdate{
		Prompt:              u.Prompt,
		FirstMessage:        u.FirstMessage,
		Language:            u.Language,
		VoiceProvider:       u.Voice.Provider,
		VoiceID:             u.Voice.VoiceID,
		VoiceModel:          u.Voice.Model,
		InterruptionAllowed: u.Flow.Interruption.Allowed,
		ResponseDelay:       u.Flow.ResponseDelay,
		IdleTime:            u.Flow.InactivityHandling.IdleTime,
		TerminateCall:       u.Flow.AgentTerminateCall,
		CallTransfer:        u.Flow.CallTransfer,
		DTMFDial:            u.Flow.DTMFDial,
		Tools:               u.Tools,
		SessionDataWebhook:  u.SessionDataWebhook,
		ExtraPromptWebhook:  u.ExtraPromptWebhook,
	}
}

func (h *Handler) UpdateAgent(c *gin.Context) {
	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	owner, ok := h.tenantOwner(c, req.UserID, req.WorkspaceID)
	if !ok {
		return
	}

	data := req.AgentData
	config := data.Config.agentUpdate().Config()

	if err := h.platform.UpdateAgent(c.Request.Context(), data.ID, data.Name, config); err != nil {
		h.platformFailure(c, err, "Failed to update agent")
		return
	}

	stored, err := toMap(config)
	if err != nil {
		errors.InternalError(c, err, h.logger, "Failed to update agent")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	err = h.resolver.UpdateAgent(ctx, owner, data.ID, tenant.AgentPatch{
		Name:      data.Name,
		Config:    stored,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		if stderrors.Is(err, tenant.ErrInvalidPath) {
			errors.BadRequest(c, err.Error())
			return
		}
		errors.InternalError(c, err, h.logger, "Failed to update agent")
		return
	}

	h.record(c, owner, audit.ActionUpdate, "agent", data.ID, map[string]interface{}{"name": data.Name})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Agent updated successfully",
	})
}

func (h *Handler) GetAgent(c *gin.Context) {
	agentID := c.Query("agent_id")
	if agentID == "" {
		errors.BadRequest(c, "Agent ID is required")
		return
	}

	agent, err := h.platform.GetAgent(c.Request.Context(), agentID)
	if err != nil {
		h.platformFailure(c, err, "Failed to retrieve agent")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"agent":   agent,
	})
}

type VoiceSummary struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

type AgentSummary struct {
	AgentID   string       `json:"agent_id"`
	Name      string       `json:"name"`
	Model     string       `json:"model"`
	Voice     VoiceSummary `json:"voice"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}

func nested(m map[string]interface{}, key string) map[string]interface{} {
	v, _ := m[key].(map[string]interface{})
	return v
}

func stringOr(m map[string]interface{}, fallback string, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func summarizeAgent(a tenant.Agent) AgentSummary {
	voice := nested(a.Config, "voice")
	llm := nested(a.Config, "llm")

	s := AgentSummary{
		AgentID: a.AgentID,
		Name:    a.Name,
		Model:   stringOr(llm, "Unknown", "model"),
		Voice: VoiceSummary{
			Provider: stringOr(voice, "Unknown", "provider"),
			Name:     stringOr(voice, "Unknown", "name", "voice_id"),
		},
		CreatedAt: a.CreatedAt,
	}
	if !a.UpdatedAt.IsZero() {
		updated := a.UpdatedAt
		s.UpdatedAt = &updated
	}
	return s
}

func (h *Handler) ListAgents(c *gin.Context) {
	userID, workspaceID := c.Query("user_id"), c.Query("workspace_id")
	if userID == "" || workspaceID == "" {
		errors.BadRequest(c, "User ID and workspace ID are required")
		return
	}

	owner, ok := h.tenantOwner(c, userID, workspaceID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	agents, err := h.store.ListAgents(ctx, owner)
	if err != nil {
		errors.InternalError(c, err, h.logger, "Failed to list agents")
		return
	}

	summaries := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		summaries = append(summaries, summarizeAgent(a))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"agents":  summaries,
	})
}
