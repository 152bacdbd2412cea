package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const tenantKey = "tenant_id"

// TenantAuth resolves "Authorization: Bearer <token>" to the tenant it was
// issued for.
func TenantAuth(tokens map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format. Use Bearer <token>"})
			return
		}

		tenantID, ok := tokens[strings.TrimSpace(token)]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}
