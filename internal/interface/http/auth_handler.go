package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/internal/interface/middleware"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/response"
)

// AuthHandler exposes registration, login and pre-login phone verification.
type AuthHandler struct {
	Svc     *application.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

func tokenMeta(pair application.TokenPair) map[string]any {
	return map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry}
}

// Register POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req application.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	p, err := h.Svc.ToProfile(u)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusCreated, p, "registered", nil))
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req application.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	res, pair, err := h.Svc.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Send(c, response.Success(c, http.StatusOK, res, "login successful", tokenMeta(pair)))
}

// SocialLogin POST /api/login/social
// Called by the OAuth gateway after it has verified the provider profile.
func (h *AuthHandler) SocialLogin(c *gin.Context) {
	var req application.SocialLoginProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	u, created, err := h.Svc.SocialLogin(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	pair, err := h.Svc.IssueTokens(c.Request.Context(), u)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	res := &application.LoginResponse{UserID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
	response.Send(c, response.Success(c, status, res, "login successful", tokenMeta(pair)))
}

// Refresh POST /api/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(helpers.RefreshCookie)
	if err != nil || refresh == "" {
		response.Send(c, response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil))
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Send(c, response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", tokenMeta(pair)))
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Svc.Logout(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	h.Cookies.Clear(c)
	response.Send(c, response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil))
}

// SendOTP POST /api/otp/send
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req application.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	res, err := h.Svc.SendOTP(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Send(c, response.Success(c, http.StatusOK, res, "otp sent", nil))
}

// VerifyOTP POST /api/otp/verify
// verification_mode in the body tells clients whether ownership was actually proven.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req application.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	res, err := h.Svc.VerifyPreLogin(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	msg := "otp verified"
	if !res.Verified {
		msg = "otp not approved"
	}
	response.Send(c, response.Success(c, http.StatusOK, res, msg, nil))
}
