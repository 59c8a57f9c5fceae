package verification

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/pkg/phone"
)

// Stub stands in for the provider when no credentials are configured.
// It does not prove phone ownership: SendOTP contacts nobody and VerifyOTP
// accepts any well-formed code, reporting only whether the phone is known.
type Stub struct {
	normalizer *phone.Normalizer
	lookup     UserLookup
	logger     *logrus.Logger
}

func NewStub(normalizer *phone.Normalizer, lookup UserLookup, logger *logrus.Logger) *Stub {
	logger.WithField("verification_mode", ModeStub).
		Warn("phone verification provider not configured; OTPs are NOT verified")
	return &Stub{normalizer: normalizer, lookup: lookup, logger: logger}
}

func (g *Stub) Mode() Mode { return ModeStub }

func (g *Stub) SendOTP(ctx context.Context, rawPhone string) (SendResult, error) {
	p, err := validatePhone(g.normalizer, rawPhone)
	if err != nil {
		return SendResult{}, err
	}
	g.logger.WithField("verification_mode", ModeStub).Warn("stub otp send; no message delivered")
	return SendResult{Success: true, Phone: p, Mode: ModeStub}, nil
}

func (g *Stub) VerifyOTP(ctx context.Context, rawPhone, code string) (VerifyResult, error) {
	p, err := validatePhone(g.normalizer, rawPhone)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := validateCode(code); err != nil {
		return VerifyResult{}, err
	}
	exists, err := g.lookup.PhoneRegistered(ctx, p)
	if err != nil {
		return VerifyResult{}, err
	}
	g.logger.WithFields(logrus.Fields{
		"verification_mode": ModeStub,
		"user_exists":       exists,
	}).Warn("stub otp verify; code not checked")
	return VerifyResult{Verified: true, UserExists: exists, Mode: ModeStub}, nil
}
