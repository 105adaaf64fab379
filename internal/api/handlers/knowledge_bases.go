package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/audit"
	"github.com/troikatech/agent-console/pkg/errors"
	"github.com/troikatech/agent-console/pkg/middleware"
	"github.com/troikatech/agent-console/pkg/millis"
	"github.com/troikatech/agent-console/pkg/storage"
)

const (
	KnowledgeBaseWebpages = "webpages"
	KnowledgeBaseFiles    = "files"
	KnowledgeBaseText     = "text"
)

type CreateKnowledgeBaseRequest struct {
	UserID            string   `json:"user_id" binding:"required"`
	WorkspaceID       string   `json:"workspace_id" binding:"required"`
	KnowledgeBaseName string   `json:"knowledge_base_name" binding:"required"`
	Type              string   `json:"type"`
	DocumentURLs      []string `json:"document_urls"`
	TextContent       string   `json:"text_content"`
}

func (h *Handler) CreateKnowledgeBase(c *gin.Context) {
	var req CreateKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	owner, ok := h.tenantOwner(c, req.UserID, req.WorkspaceID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		kb  millis.Resource
		err error
	)

	switch req.Type {
	case KnowledgeBaseWebpages:
		if len(req.DocumentURLs) == 0 {
			errors.BadRequest(c, "No URLs provided for webpage type")
			return
		}
		kb, err = h.platform.CreateKnowledgeBase(ctx, millis.KnowledgeBaseParams{
			Name: req.KnowledgeBaseName,
			URLs: req.DocumentURLs,
		})

	case KnowledgeBaseFiles:
		if len(req.DocumentURLs) == 0 {
			errors.BadRequest(c, "No file URLs provided")
			return
		}
		if kb, ok = h.uploadFiles(c, req.KnowledgeBaseName, req.DocumentURLs); !ok {
			return
		}

	case KnowledgeBaseText:
		if req.TextContent == "" {
			errors.BadRequest(c, "No text content provided")
			return
		}
		kb, err = h.platform.CreateKnowledgeBase(ctx, millis.KnowledgeBaseParams{
			Name: req.KnowledgeBaseName,
			Texts: []millis.KnowledgeBaseText{{
				Text:  req.TextContent,
				Title: fmt.Sprintf("Manual Entry %s", time.Now().UTC().Format(time.RFC3339)),
			}},
		})

	default:
		errors.BadRequest(c, "Invalid content type")
		return
	}

	if err != nil {
		h.platformFailure(c, err, "Failed to create knowledge base")
		return
	}

	kbID := kb.String("id")
	if kbID == "" {
		errors.InternalError(c, fmt.Errorf("knowledge base response has no id"), h.logger, "Failed to create knowledge base")
		return
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := h.store.PutKnowledgeBase(storeCtx, owner, kbID, req.Type, req.UserID, kb); err != nil {
		errors.InternalError(c, err, h.logger, "Failed to create knowledge base")
		return
	}

	h.record(c, owner, audit.ActionCreate, "knowledge_base", kbID, map[string]interface{}{
		"name": req.KnowledgeBaseName,
		"type": req.Type,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"knowledge_base": kb,
	})
}

// uploadFiles stages the documents, uploads them and removes the staging
// directory. It returns false after writing an error response.
func (h *Handler) uploadFiles(c *gin.Context, name string, urls []string) (millis.Resource, bool) {
	if h.stager == nil {
		errors.BadRequest(c, "File uploads are not enabled")
		return nil, false
	}

	batch, err := h.stager.Stage(c.Request.Context(), urls)
	if err != nil {
		if stderrors.Is(err, storage.ErrUnsupportedURL) {
			errors.BadRequest(c, err.Error())
			return nil, false
		}
		errors.InternalError(c, err, h.logger, "Failed to process files")
		return nil, false
	}
	defer func() {
		if err := batch.Cleanup(); err != nil {
			h.logger.Warn("Failed to remove staged files", zap.String("dir", batch.Dir), zap.Error(err))
		}
	}()

	files := make([]millis.UploadFile, 0, len(batch.Files))
	for _, f := range batch.Files {
		files = append(files, millis.UploadFile{Name: f.Name, Path: f.Path})
	}

	kb, err := h.platform.UploadKnowledgeBase(c.Request.Context(), name, files)
	if err != nil {
		h.platformFailure(c, err, "Failed to create knowledge base")
		return nil, false
	}
	return kb, true
}

func (h *Handler) ResyncKnowledgeBase(c *gin.Context) {
	id := c.Param("id")

	if err := h.platform.RefreshKnowledgeBase(c.Request.Context(), id); err != nil {
		h.platformFailure(c, err, "Failed to resync knowledge base")
		return
	}

	h.record(c, tenant.Owner{UserID: middleware.AuthenticatedUser(c)}, audit.ActionResync, "knowledge_base", id, nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Knowledge base refresh initiated",
	})
}

func (h *Handler) DeleteKnowledgeBase(c *gin.Context) {
	id := c.Param("id")

	if err := h.platform.DeleteKnowledgeBase(c.Request.Context(), id); err != nil {
		h.platformFailure(c, err, "Failed to delete knowledge base")
		return
	}

	h.record(c, tenant.Owner{UserID: middleware.AuthenticatedUser(c)}, audit.ActionDelete, "knowledge_base", id, nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Knowledge base deleted successfully",
	})
}

// mirrorItems flattens stored mirrors back to the platform's shape.
func mirrorItems(mirrors []tenant.Mirror) []map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(mirrors))
	for _, m := range mirrors {
		item := make(map[string]interface{}, len(m.Data)+2)
		for k, v := range m.Data {
			item[k] = v
		}
		if m.Kind != "" {
			item["type"] = m.Kind
		}
		item["created_at"] = m.CreatedAt
		items = append(items, item)
	}
	return items
}

// ListKnowledgeBases serves the workspace's mirror when user_id and
// workspace_id are given and the platform's full list otherwise.
func (h *Handler) ListKnowledgeBases(c *gin.Context) {
	userID, workspaceID := c.Query("user_id"), c.Query("workspace_id")
	if userID == "" && workspaceID == "" {
		h.relayList(c, h.platform.ListKnowledgeBases, "Failed to list knowledge bases")
		return
	}

	owner, ok := h.tenantOwner(c, userID, workspaceID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	mirrors, err := h.store.ListKnowledgeBases(ctx, owner)
	if err != nil {
		errors.InternalError(c, err, h.logger, "Failed to list knowledge bases")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"knowledge_bases": mirrorItems(mirrors),
	})
}

func (h *Handler) relayList(c *gin.Context, list func(context.Context) (json.RawMessage, error), fallback string) {
	raw, err := list(c.Request.Context())
	if err != nil {
		h.platformFailure(c, err, fallback)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
