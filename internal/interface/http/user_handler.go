package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/internal/interface/middleware"
	"github.com/oksasatya/course-identity/pkg/response"
)

const maxAvatarBytes = 5 << 20

var avatarTypes = map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true}

type UserHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *application.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	p, err := h.Svc.GetProfile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, p, "profile", nil))
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req application.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	p, err := h.Svc.UpdateProfile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, p, "profile updated", nil))
}

// UploadAvatar POST /api/profile/avatar (multipart field "file")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Send(c, response.Error[any](c, http.StatusBadRequest, "missing file", nil))
		return
	}
	ct := fh.Header.Get("Content-Type")
	if fh.Size > maxAvatarBytes || !avatarTypes[ct] {
		response.Send(c, response.Error[any](c, http.StatusBadRequest, "avatar must be a jpeg, png or webp under 5MB", nil))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Send(c, response.Error[any](c, http.StatusBadRequest, "unreadable file", nil))
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), f, fh.Filename, ct)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, gin.H{"avatar_ref": url}, "avatar updated", nil))
}

// FindByEmail GET /api/users/lookup?email= (admin)
func (h *UserHandler) FindByEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		response.Send(c, response.Error[any](c, http.StatusBadRequest, "email is required", nil))
		return
	}
	p, err := h.Svc.FindUserByEmail(c.Request.Context(), email)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, p, "user", nil))
}

// Search GET /api/users/search?q=&size= (admin)
func (h *UserHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	out, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, out, "users", map[string]any{"count": len(out)}))
}
