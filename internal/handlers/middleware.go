package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context key carrying the authenticated user's id for downstream handlers.
const userIDKey = "userID"

const (
	errAuthMissing   = "authorization header required"
	errAuthMalformed = "authorization header must be 'Bearer <token>'"
	errAuthRejected  = "invalid or expired token"
)

// authMiddleware guards the versioned API: every request must carry a
// bearer token issued by sign-in.
func (h *Handler) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errAuthMissing})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errAuthMalformed})
		return
	}

	userID, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Infow("auth_token_rejected", "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errAuthRejected})
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}
