package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/pkg/response"
)

// RequireRole lets through callers whose role is at least min. It must run after Auth.
func RequireRole(min entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := entity.ParseRole(c.GetString(CtxUserRoleKey))
		if !ok || !role.AtLeast(min) {
			resp := response.Error[any](c, http.StatusForbidden, "insufficient role", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}
		c.Next()
	}
}
