package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	handlers "github.com/oksasatya/course-identity/internal/interface/http"
	"github.com/oksasatya/course-identity/internal/interface/middleware"
	"github.com/oksasatya/course-identity/pkg/helpers"
)

// InviteModule wires the invitation lifecycle.
// Public: GET /invites/validate, POST /invites/accept
// Admin: POST /invites, GET /invites, POST /invites/:id/resend, DELETE /invites/:id
type InviteModule struct {
	Handler *handlers.InviteHandler
	Redis   *redis.Client
	JWT     *helpers.JWTManager
}

func NewInviteModule(h *handlers.InviteHandler, rdb *redis.Client, jwt *helpers.JWTManager) *InviteModule {
	return &InviteModule{Handler: h, Redis: rdb, JWT: jwt}
}

func (m *InviteModule) Name() string { return "invite" }

func (m *InviteModule) Register(rg *gin.RouterGroup) {
	tokenLimiter := middleware.RateLimit(m.Redis, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	rg.GET("/invites/validate", tokenLimiter, m.Handler.Validate)
	rg.POST("/invites/accept", tokenLimiter, m.Handler.Accept)

	admin := rg.Group("/invites")
	admin.Use(
		middleware.Auth(m.Redis, m.JWT),
		middleware.RequireRole(entity.RoleAdmin),
		middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		admin.POST("", m.Handler.Create)
		admin.GET("", m.Handler.List)
		admin.POST("/:id/resend", m.Handler.Resend)
		admin.DELETE("/:id", m.Handler.Cancel)
	}
}
