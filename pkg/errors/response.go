package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorBody is the failure envelope every console endpoint returns.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorResponse sends {success:false, error} with the request trace id.
func ErrorResponse(c *gin.Context, status int, message string) {
	traceID := c.GetString("trace_id")
	if traceID == "" {
		traceID = c.GetString("request_id")
	}

	c.JSON(status, ErrorBody{
		Success: false,
		Error:   message,
		TraceID: traceID,
	})
}

// InternalError logs err and sends a generic 500.
func InternalError(c *gin.Context, err error, logger *zap.Logger, message string) {
	logger.Error("Internal server error",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)

	if message == "" {
		message = "An unexpected error occurred. Please try again later."
	}
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// UpstreamError reports a failed agent platform call as a 500, preferring
// the platform's own message when it sent one.
func UpstreamError(c *gin.Context, err error, logger *zap.Logger, fallback string, platformMessage string) {
	logger.Error("Agent platform call failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)

	message := fallback
	if platformMessage != "" {
		message = fallback + ": " + platformMessage
	}
	ErrorResponse(c, http.StatusInternalServerError, message)
}

func BadRequest(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

func TooManyRequests(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusTooManyRequests, message)
}
