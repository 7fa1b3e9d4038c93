package middleware

import (
	"net/http"
	"strings"

	"taskify/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// AuthMiddleware rejects requests without a valid bearer token before any
// handler runs and puts the caller's identity in the gin context.
func AuthMiddleware(verifier services.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		identity, err := verifier.VerifyToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			return
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUsername, identity.Username)

		c.Next()
	}
}

// UserID returns the authenticated caller set by AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
