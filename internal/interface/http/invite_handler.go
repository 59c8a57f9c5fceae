package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/internal/interface/middleware"
	"github.com/oksasatya/course-identity/pkg/response"
)

type InviteHandler struct {
	Svc    *application.InviteService
	Users  *application.Service
	Logger *logrus.Logger
}

func NewInviteHandler(svc *application.InviteService, users *application.Service, logger *logrus.Logger) *InviteHandler {
	return &InviteHandler{Svc: svc, Users: users, Logger: logger}
}

func issuer(c *gin.Context) application.Issuer {
	role, _ := entity.ParseRole(c.GetString(middleware.CtxUserRoleKey))
	return application.Issuer{ID: c.GetString(middleware.CtxUserIDKey), Role: role}
}

// Create POST /api/invites (admin)
func (h *InviteHandler) Create(c *gin.Context) {
	var req application.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	inv, err := h.Svc.CreateInvite(c.Request.Context(), req, issuer(c))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusCreated, inv, "invite created", nil))
}

// Validate GET /api/invites/validate?token=
func (h *InviteHandler) Validate(c *gin.Context) {
	g, err := h.Svc.ValidateInvite(c.Request.Context(), c.Query("token"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, g, "invite valid", nil))
}

// Accept POST /api/invites/accept
func (h *InviteHandler) Accept(c *gin.Context) {
	var req application.AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	u, err := h.Svc.AcceptInvite(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	p, err := h.Users.ToProfile(u)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusCreated, p, "account created", nil))
}

// Resend POST /api/invites/:id/resend (admin)
func (h *InviteHandler) Resend(c *gin.Context) {
	inv, err := h.Svc.ResendInvite(c.Request.Context(), c.Param("id"), issuer(c))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, inv, "invite resent", nil))
}

// Cancel DELETE /api/invites/:id (admin)
func (h *InviteHandler) Cancel(c *gin.Context) {
	if err := h.Svc.CancelInvite(c.Request.Context(), c.Param("id"), issuer(c)); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success[any](c, http.StatusOK, gin.H{"cancelled": true}, "invite cancelled", nil))
}

// List GET /api/invites?view=all|pending (admin)
func (h *InviteHandler) List(c *gin.Context) {
	view := c.DefaultQuery("view", "all")
	if view != "all" && view != "pending" {
		response.Send(c, response.Error[any](c, http.StatusBadRequest, "view must be all or pending", nil))
		return
	}
	out, err := h.Svc.ListInvites(c.Request.Context(), view == "pending")
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, out, "invites", map[string]any{"count": len(out), "view": view}))
}
