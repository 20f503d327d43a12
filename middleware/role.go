package middleware

import (
	"net/http"

	"expensehub/models"

	"github.com/gin-gonic/gin"
)

// RequireRoles 需在 JWTAuth 之后使用，角色不在列表内返回 403
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if GetCurrentUserID(c) == 0 {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
			return
		}
		if !allowed[GetCurrentRole(c)] {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions.")
			return
		}
		c.Next()
	}
}
