package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the first successful response for a repeated
// Idempotency-Key on POST, PUT and PATCH requests.
func IdempotencyMiddleware(client *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		scope := idempotencyScope(c)
		cacheKey := "idempotency:" + hashIdempotencyKey(scope+" "+c.Request.Method+" "+c.FullPath()+" "+key)
		ctx := c.Request.Context()

		if raw, err := client.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached cachedResponse
			if json.Unmarshal(raw, &cached) == nil {
				c.Header("X-Idempotency-Key-Used", "true")
				c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
				c.Abort()
				return
			}
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status < 200 || status >= 300 {
			return
		}

		raw, err := json.Marshal(cachedResponse{Status: status, Body: w.body.Bytes()})
		if err != nil {
			return
		}
		if err := client.Set(ctx, cacheKey, raw, idempotencyTTL).Err(); err != nil {
			logger.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}

// idempotencyScope names the caller a key belongs to: the bearer user, else
// the body's user_id, else the client address. The body is restored.
func idempotencyScope(c *gin.Context) string {
	if user := AuthenticatedUser(c); user != "" {
		return "user:" + user
	}

	if c.Request.Body != nil {
		raw, err := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if err == nil {
			var body struct {
				UserID string `json:"user_id"`
			}
			if json.Unmarshal(raw, &body) == nil && body.UserID != "" {
				return "tenant:" + body.UserID
			}
		}
	}

	return "ip:" + c.ClientIP()
}

func hashIdempotencyKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
