package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/response"
)

const (
	CtxUserIDKey   = "userID"
	CtxUserRoleKey = "userRole"
)

// bearerToken prefers the Authorization header and falls back to the access_token cookie.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	token, _ := c.Cookie(helpers.AccessCookie)
	return token
}

// Auth validates the access token and requires the live Redis session to carry the
// token's session id. It sets userID and userRole in the Gin context on success.
// The role comes from the session, which refresh keeps in step with the user record.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			resp := response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			resp := response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}

		role := claims.Role
		if rdb != nil {
			data, err := rdb.HGetAll(c.Request.Context(), helpers.KeySession(claims.UserID)).Result()
			if err != nil || len(data) == 0 || data["sid"] != claims.SessionID {
				resp := response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
				c.AbortWithStatusJSON(resp.Status, resp)
				return
			}
			if r := data["role"]; r != "" {
				role = r
			}
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxUserRoleKey, role)
		c.Next()
	}
}
