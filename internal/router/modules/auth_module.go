package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/course-identity/internal/interface/http"
	"github.com/oksasatya/course-identity/internal/interface/middleware"
	"github.com/oksasatya/course-identity/pkg/helpers"
)

// AuthModule routes registration, login, sessions and pre-login OTP.
// Public: POST /register, /login, /refresh, /otp/send, /otp/verify
// Internal: POST /login/social (private network only)
// Protected: POST /logout
type AuthModule struct {
	Handler *handlers.AuthHandler
	Redis   *redis.Client
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, rdb *redis.Client, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, Redis: rdb, JWT: jwt}
}

func (m *AuthModule) Name() string { return "auth" }

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIP(), nil)
	loginLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIP(), nil)
	// a same-network BFF refreshes for many users from one address
	refreshLimiter := middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	otpSendLimiter := middleware.RateLimit(m.Redis, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	otpVerifyLimiter := middleware.RateLimit(m.Redis, 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/register", registerLimiter, m.Handler.Register)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/login/social", middleware.OnlyFrom(middleware.AllowPrivatePeer()), m.Handler.SocialLogin)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/otp/send", otpSendLimiter, m.Handler.SendOTP)
	rg.POST("/otp/verify", otpVerifyLimiter, m.Handler.VerifyOTP)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT))
	{
		auth.POST("/logout", m.Handler.Logout)
	}
}
