package middleware

import (
	"net/http"
	"strings"

	"bustix/internal/domain"
	"bustix/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequireRoles allows only callers whose role, as set by Auth, is listed.
func RequireRoles(allowedRoles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[strings.ToLower(strings.TrimSpace(string(r)))] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString(userRoleKey)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized: no role on request",
				"code":  "Unauthorized",
			})
			return
		}

		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; !ok {
			logger.Security(c.Request.Context()).Warn("role not allowed", "role", role, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":      "forbidden: role not allowed",
				"code":       string(domain.CodeForbidden),
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
