package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/agent-console/pkg/auth"
	"github.com/troikatech/agent-console/pkg/errors"
)

const ContextUserID = "auth_user_id"

// AuthMiddleware requires a bearer access token and stores its user id on the
// context. Handlers compare it with the tenant named in the request.
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errors.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		bearerToken := strings.Fields(authHeader)
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "bearer") {
			errors.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(bearerToken[1], jwtSecret, issuer)
		if err != nil {
			errors.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

// AuthenticatedUser returns the token's user id, or "" when auth is disabled.
func AuthenticatedUser(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// TenantAllowed reports whether the caller may act for userID.
func TenantAllowed(c *gin.Context, userID string) bool {
	authUser := AuthenticatedUser(c)
	return authUser == "" || authUser == userID
}
