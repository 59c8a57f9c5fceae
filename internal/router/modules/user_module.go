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

// UserModule wires profile and admin user lookup routes.
// Protected: GET/PUT /profile, POST /profile/avatar
// Admin: GET /users/lookup, GET /users/search
type UserModule struct {
	Handler *handlers.UserHandler
	Redis   *redis.Client
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, rdb *redis.Client, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, Redis: rdb, JWT: jwt}
}

func (m *UserModule) Name() string { return "user" }

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT))
	auth.Use(
		middleware.RateLimit(m.Redis, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
	}

	admin := auth.Group("/users")
	admin.Use(middleware.RequireRole(entity.RoleAdmin))
	{
		admin.GET("/lookup", m.Handler.FindByEmail)
		admin.GET("/search", m.Handler.Search)
	}
}
