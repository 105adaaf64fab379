package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func voiceCacheKey(language string) string {
	return "voices:" + language
}

// ListVoices returns the platform voice catalogue, cached in redis when
// one is configured.
func (h *Handler) ListVoices(c *gin.Context) {
	language := c.DefaultQuery("language", h.cfg.VoiceLanguage)
	if language == "" {
		language = "en"
	}
	ctx := c.Request.Context()

	if h.redis != nil {
		if cached, err := h.redis.Get(ctx, voiceCacheKey(language)).Bytes(); err == nil {
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"voices":  json.RawMessage(cached),
			})
			return
		}
	}

	voices, err := h.platform.ListVoices(ctx, language)
	if err != nil {
		h.platformFailure(c, err, "Failed to list voices")
		return
	}

	if h.redis != nil {
		if err := h.redis.Set(ctx, voiceCacheKey(language), []byte(voices), h.cfg.VoiceCacheTTL()).Err(); err != nil {
			h.logger.Warn("Failed to cache voices", zap.String("language", language), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"voices":  voices,
	})
}
