package application

import (
	"time"

	"github.com/oksasatya/course-identity/internal/domain/entity"
)

// RegisterRequest is the self-service sign-up payload. Role is accepted so old
// clients keep working but is never read: new accounts start at entity.DefaultRole.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,pwd"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Phone     string `json:"phone" binding:"omitempty,phoneish"`
	Role      string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SocialLoginProfile is what an external identity provider told us about the user.
type SocialLoginProfile struct {
	Provider   string `json:"provider" binding:"required,max=32"`
	ProviderID string `json:"provider_id" binding:"required,max=255"`
	Email      string `json:"email" binding:"required,email,max=254"`
	FirstName  string `json:"first_name" binding:"max=100"`
	LastName   string `json:"last_name" binding:"max=100"`
	AvatarURL  string `json:"avatar_url" binding:"omitempty,url"`
}

type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type UpdateProfileRequest struct {
	FirstName string `json:"first_name" binding:"omitempty,max=100"`
	LastName  string `json:"last_name" binding:"omitempty,max=100"`
	Email     string `json:"email" binding:"omitempty,email,max=254"`
	Phone     string `json:"phone" binding:"omitempty,phoneish"`
}

type CreateInviteRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
	Role  string `json:"role" binding:"required"`
}

// AcceptInviteRequest completes an invite. Email and Role are ignored; both come
// from the invite record.
type AcceptInviteRequest struct {
	Token     string `json:"token" binding:"required"`
	Password  string `json:"password" binding:"required,pwd"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Phone     string `json:"phone" binding:"omitempty,phoneish"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// InviteGrant is what a valid invite entitles its bearer to.
type InviteGrant struct {
	InviteID  string      `json:"invite_id"`
	Email     string      `json:"email"`
	Role      entity.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}
