// Package verification drives phone-ownership checks against an external OTP provider.
//
// Exactly one of two gateways is built at start-up: Live, when provider credentials are
// configured, or Stub, when they are not. Stub never proves phone ownership; it answers
// whether a user with that phone already exists and tags every result with ModeStub.
package verification

import (
	"context"
	"errors"
	"strings"

	"github.com/oksasatya/course-identity/pkg/apperror"
	"github.com/oksasatya/course-identity/pkg/phone"
)

type Mode string

const (
	ModeLive Mode = "live"
	ModeStub Mode = "stub"
)

const (
	minPhoneLen = 10
	minCodeLen  = 4
)

type SendResult struct {
	Success bool   `json:"success"`
	Phone   string `json:"-"`
	Mode    Mode   `json:"verification_mode"`
}

type VerifyResult struct {
	Verified   bool `json:"verified"`
	UserExists bool `json:"user_exists"`
	Mode       Mode `json:"verification_mode"`
}

// Gateway issues and checks phone OTP challenges.
type Gateway interface {
	SendOTP(ctx context.Context, rawPhone string) (SendResult, error)
	VerifyOTP(ctx context.Context, rawPhone, code string) (VerifyResult, error)
	Mode() Mode
}

// UserLookup reports whether a user is registered under a normalized phone.
type UserLookup interface {
	PhoneRegistered(ctx context.Context, normalizedPhone string) (bool, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, normalizedPhone string) (bool, error)

func (f UserLookupFunc) PhoneRegistered(ctx context.Context, p string) (bool, error) {
	return f(ctx, p)
}

// Provider is the external OTP service. Implementations return ErrInvalidNumber
// for numbers the provider rejects; any other error means the provider is unavailable.
type Provider interface {
	IssueChallenge(ctx context.Context, phone, channel string) error
	CheckChallenge(ctx context.Context, phone, code string) (approved bool, err error)
}

var ErrInvalidNumber = errors.New("provider rejected phone number")

func validatePhone(n *phone.Normalizer, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < minPhoneLen {
		return "", apperror.Validation("phone must be at least 10 characters")
	}
	p, err := n.Normalize(raw)
	if err != nil {
		return "", apperror.Validation("phone is not a number")
	}
	return p, nil
}

func validateCode(code string) error {
	if len(strings.TrimSpace(code)) < minCodeLen {
		return apperror.Validation("code must be at least 4 characters")
	}
	return nil
}
