package modules

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/course-identity/internal/verification"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/response"
)

// HealthModule serves GET /health. It reports the verification mode so an
// operator can tell a stubbed deployment apart from a live one.
type HealthModule struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Verifier verification.Gateway
}

func NewHealthModule(pool *pgxpool.Pool, rdb *redis.Client, verifier verification.Gateway) *HealthModule {
	return &HealthModule{Pool: pool, Redis: rdb, Verifier: verifier}
}

func (m *HealthModule) Name() string { return "health" }

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", m.health)
}

func (m *HealthModule) health(c *gin.Context) {
	checks := map[string]string{}
	status := http.StatusOK

	if m.Pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := m.Pool.Ping(ctx)
		cancel()
		checks["postgres"] = okOr(err)
		if err != nil {
			status = http.StatusServiceUnavailable
		}
	}
	if m.Redis != nil {
		err := helpers.RedisPing(c.Request.Context(), m.Redis)
		checks["redis"] = okOr(err)
		if err != nil {
			status = http.StatusServiceUnavailable
		}
	}
	if m.Verifier != nil {
		checks["verification_mode"] = string(m.Verifier.Mode())
	}

	if status != http.StatusOK {
		response.Send(c, response.Error[any](c, status, "degraded", checks))
		return
	}
	response.Send(c, response.Success(c, status, checks, "ok", nil))
}

func okOr(err error) string {
	if err != nil {
		return "down"
	}
	return "ok"
}
