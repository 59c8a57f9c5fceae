package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/pkg/helpers"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_TokenSources(t *testing.T) {
	jwt := helpers.NewJWTManager("a", "r", time.Minute, time.Hour)
	token, _, err := jwt.GenerateAccessToken("u-1", "s-1", "TEACHER")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Auth(nil, jwt), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey)+"/"+c.GetString(CtxUserRoleKey))
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1/TEACHER", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/me", nil)).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{"SUPER_ADMIN", http.StatusOK},
		{"ADMIN", http.StatusOK},
		{"TEACHER", http.StatusForbidden},
		{"", http.StatusForbidden},
		{"ROOT", http.StatusForbidden},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) { c.Set(CtxUserRoleKey, tc.role) }, RequireRole(entity.RoleAdmin), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		assert.Equal(t, tc.want, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code, tc.role)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "3f2b8a9e-55c1-4d55-9b7e-1b0f6f2a1c11")
	assert.Equal(t, "3f2b8a9e-55c1-4d55-9b7e-1b0f6f2a1c11", serve(r, req).Body.String())
}

func TestRealIP(t *testing.T) {
	r := gin.New()
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", serve(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-Connecting-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", serve(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "not-an-ip")
	req.Header.Set("X-Forwarded-For", "192.0.2.44")
	assert.Equal(t, "192.0.2.44", serve(r, req).Body.String())
}

func TestKeyFuncs(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/otp/send", nil)
	c.Set("real_ip", "198.51.100.2")

	assert.Equal(t, "rl:ip:198.51.100.2", KeyByIP()(c))
	assert.Equal(t, "rl:path:/otp/send:ip:198.51.100.2", KeyByIPAndPath()(c))
	assert.Equal(t, "rl:user:anon:ip:198.51.100.2", KeyByUserID()(c))

	c.Set(CtxUserIDKey, "u-1")
	assert.Equal(t, "rl:user:u-1", KeyByUserID()(c))
}

func TestRateLimit_DisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(nil, 1, time.Minute, KeyByIP(), nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestAllowPrivateIP(t *testing.T) {
	allow := AllowPrivateIP()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	c.Set("real_ip", "10.1.2.3")
	assert.True(t, allow(c))
	c.Set("real_ip", "8.8.8.8")
	assert.False(t, allow(c))
}

func TestOnlyFrom_PrivatePeer(t *testing.T) {
	r := gin.New()
	r.Use(RealIP())
	r.POST("/x", OnlyFrom(AllowPrivatePeer()), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "10.0.0.5")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}
