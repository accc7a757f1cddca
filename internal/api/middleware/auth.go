package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/memefeed/internal/auth"
	"github.com/timmy/memefeed/internal/logger"
)

const tokenKey = "bearer_token"

// Auth rejects requests without a bearer token and stores the token for handlers.
// The token is forwarded to the meme service, which verifies it.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		c.Set(tokenKey, token)
		if subject, err := auth.Subject(token); err == nil {
			c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), subject))
		}
		c.Next()
	}
}

// Token returns the bearer token stored by Auth.
func Token(c *gin.Context) string {
	return c.GetString(tokenKey)
}
