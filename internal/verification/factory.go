package verification

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/pkg/phone"
)

type Options struct {
	Credentials Credentials
	Timeout     time.Duration
	Channel     string
}

// New picks the gateway once: Live when all credentials are present, Stub otherwise.
// The choice never changes for the life of the process.
func New(opts Options, normalizer *phone.Normalizer, lookup UserLookup, logger *logrus.Logger) Gateway {
	if !opts.Credentials.Complete() {
		return NewStub(normalizer, lookup, logger)
	}
	logger.WithField("verification_mode", ModeLive).Info("phone verification provider configured")
	return NewLive(NewTwilioProvider(opts.Credentials), normalizer, lookup, logger, opts.Timeout, opts.Channel)
}
