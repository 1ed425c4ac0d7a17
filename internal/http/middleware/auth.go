// README: Auth middleware; resolves the caller from the bearer token.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quickfix/internal/infra"
)

const callerUIDKey = "callerUID"

// Auth rejects requests without a verifiable "Authorization: Bearer <token>"
// header and stores the caller uid on the context. Roles come from the user
// record, never from token claims.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerUIDKey, token.UID)
		c.Next()
	}
}

// CallerUID returns the authenticated user id, or "" outside Auth.
func CallerUID(c *gin.Context) string {
	return c.GetString(callerUIDKey)
}
