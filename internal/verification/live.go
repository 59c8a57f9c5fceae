package verification

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/pkg/apperror"
	"github.com/oksasatya/course-identity/pkg/phone"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultChannel = "sms"
)

// Live proves phone ownership through the external provider.
type Live struct {
	provider   Provider
	normalizer *phone.Normalizer
	lookup     UserLookup
	logger     *logrus.Logger
	timeout    time.Duration
	channel    string
}

func NewLive(provider Provider, normalizer *phone.Normalizer, lookup UserLookup, logger *logrus.Logger, timeout time.Duration, channel string) *Live {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Live{
		provider:   provider,
		normalizer: normalizer,
		lookup:     lookup,
		logger:     logger,
		timeout:    timeout,
		channel:    channel,
	}
}

func (g *Live) Mode() Mode { return ModeLive }

func (g *Live) SendOTP(ctx context.Context, rawPhone string) (SendResult, error) {
	p, err := validatePhone(g.normalizer, rawPhone)
	if err != nil {
		return SendResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.provider.IssueChallenge(ctx, p, g.channel); err != nil {
		if errors.Is(err, ErrInvalidNumber) {
			return SendResult{}, apperror.InvalidPhoneNumber("phone number rejected by provider")
		}
		g.logger.WithError(err).WithField("verification_mode", ModeLive).Warn("otp issue failed")
		return SendResult{}, apperror.VerificationUnavailable(err)
	}
	return SendResult{Success: true, Phone: p, Mode: ModeLive}, nil
}

// VerifyOTP answers Verified=false for a wrong or stale code so callers can prompt a retry.
func (g *Live) VerifyOTP(ctx context.Context, rawPhone, code string) (VerifyResult, error) {
	p, err := validatePhone(g.normalizer, rawPhone)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := validateCode(code); err != nil {
		return VerifyResult{}, err
	}
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	approved, err := g.provider.CheckChallenge(cctx, p, code)
	if err != nil {
		g.logger.WithError(err).WithField("verification_mode", ModeLive).Warn("otp check failed")
		return VerifyResult{}, apperror.VerificationUnavailable(err)
	}
	res := VerifyResult{Verified: approved, Mode: ModeLive}
	if !approved {
		return res, nil
	}
	exists, err := g.lookup.PhoneRegistered(ctx, p)
	if err != nil {
		return VerifyResult{}, err
	}
	res.UserExists = exists
	return res, nil
}
