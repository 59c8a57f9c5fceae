package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/internal/interface/middleware"
	"github.com/oksasatya/course-identity/pkg/apperror"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func run(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	r := gin.New()
	r.GET("/x", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestWriteError_Status(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"conflict", application.ErrInvitePending, http.StatusConflict, "an invite for this email is still pending"},
		{"expired", application.ErrInviteExpired, http.StatusGone, "invite expired"},
		{"not found", application.ErrInviteNotFound, http.StatusNotFound, "invite not found"},
		{"auth", application.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"forbidden", application.ErrRoleNotAssignable, http.StatusForbidden, "role cannot be assigned by this issuer"},
		{"phone", apperror.InvalidPhoneNumber("phone number must have 10 digits"), http.StatusUnprocessableEntity, "phone number must have 10 digits"},
		{"provider", apperror.VerificationUnavailable(errors.New("timeout")), http.StatusServiceUnavailable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, _ := logtest.NewNullLogger()
			w, env := run(t, func(c *gin.Context) { writeError(c, logger, tc.err) })
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, env.Success)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, env.Message)
			}
		})
	}
}

func TestWriteError_InternalIsOpaque(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	cause := errors.New("pq: relation users does not exist")

	w, env := run(t, func(c *gin.Context) {
		writeError(c, logger, apperror.Internal("lookup email", cause))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", env.Message)
	assert.NotContains(t, w.Body.String(), "relation users")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Data["error"], "relation users")
}

func TestWriteError_IntegrityIsOpaque(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	w, env := run(t, func(c *gin.Context) {
		writeError(c, logger, apperror.Integrity("open email", errors.New("tampered")))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", env.Message)
	assert.Len(t, hook.AllEntries(), 1)
}

func TestIssuerFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(middleware.CtxUserIDKey, "u-9")
	c.Set(middleware.CtxUserRoleKey, "ADMIN")

	by := issuer(c)
	assert.Equal(t, "u-9", by.ID)
	assert.Equal(t, entity.RoleAdmin, by.Role)
}

func TestInviteList_RejectsUnknownView(t *testing.T) {
	h := NewInviteHandler(nil, nil, nil)
	r := gin.New()
	r.GET("/invites", h.List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invites?view=mine", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBadPayload(t *testing.T) {
	h := NewAuthHandler(nil, nil, "localhost", false)
	r := gin.New()
	r.POST("/login", h.Login)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
