package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/troikatech/agent-console/pkg/errors"
	"github.com/troikatech/agent-console/pkg/validation"
)

// ValidatePhoneParam normalizes an E.164 path parameter in place.
func ValidatePhoneParam(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := c.Param(paramName)
		if phone == "" {
			errors.BadRequest(c, paramName+" parameter is required")
			c.Abort()
			return
		}

		normalized, err := validation.NormalizeE164(phone)
		if err != nil {
			errors.BadRequest(c, "invalid "+paramName+": must be in E.164 format (e.g., +14155550100)")
			c.Abort()
			return
		}

		for i := range c.Params {
			if c.Params[i].Key == paramName {
				c.Params[i].Value = normalized
			}
		}
		c.Next()
	}
}

// RequireQuery rejects requests missing any of the named query parameters.
func RequireQuery(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			if c.Query(name) == "" {
				errors.BadRequest(c, name+" query parameter is required")
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
