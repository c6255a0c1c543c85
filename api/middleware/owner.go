package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// OwnerContextKey is the context key holding the authenticated owner ID
const OwnerContextKey = "owner_id"

// OwnerAuth requires the X-User-ID header on every request. Each owner only
// ever sees their own records; repository queries are scoped by this ID.
func OwnerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := c.GetHeader("X-User-ID")
		if ownerID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "X-User-ID header required",
			})
			c.Abort()
			return
		}

		c.Set(OwnerContextKey, ownerID)
		c.Next()
	}
}

// GetOwnerFromContext retrieves the owner ID from the context
func GetOwnerFromContext(c *gin.Context) (string, error) {
	ownerVal, exists := c.Get(OwnerContextKey)
	if !exists {
		return "", errors.New("owner not found in context")
	}

	ownerID, ok := ownerVal.(string)
	if !ok || ownerID == "" {
		return "", errors.New("owner in context has incorrect type")
	}

	return ownerID, nil
}
