package application

import (
	"errors"

	"github.com/oksasatya/course-identity/internal/domain/repository"
	"github.com/oksasatya/course-identity/pkg/apperror"
	"github.com/oksasatya/course-identity/pkg/pii"
)

var (
	ErrInvalidCredentials = apperror.Authentication("invalid credentials")
	ErrUserNotFound       = apperror.NotFound("user not found")
	ErrEmailTaken         = apperror.Conflict("email already registered")
	ErrInvitePending      = apperror.Conflict("an invite for this email is still pending")
	ErrInviteUsed         = apperror.Conflict("invite already used")
	ErrInviteNotFound     = apperror.NotFound("invite not found")
	ErrInviteExpired      = apperror.Expired("invite expired")
	ErrRoleNotAssignable  = apperror.Forbidden("role cannot be assigned by this issuer")
)

// invalid wraps a validator error so handlers can still render field details.
func invalid(err error) error {
	return apperror.Wrap(apperror.KindValidation, "invalid request", err)
}

// sealErr classifies vault failures: a missing key or tampered record is an
// integrity failure for that record, never a silent fallback.
func sealErr(msg string, err error) error {
	if errors.Is(err, pii.ErrKeyUnavailable) || errors.Is(err, pii.ErrTampered) {
		return apperror.Integrity(msg, err)
	}
	return apperror.Internal(msg, err)
}

func storeErr(msg string, err error) error {
	return apperror.Internal(msg, err)
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }
