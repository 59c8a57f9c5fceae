// Package mailqueue publishes outgoing email jobs to RabbitMQ for cmd/email_worker.
package mailqueue

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/config"
	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/pkg/mailer"
	mailtpl "github.com/oksasatya/course-identity/pkg/mailer/templates"
)

// Publisher is satisfied by *helpers.RabbitPublisher.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

var errQueueUnavailable = errors.New("mail queue unavailable")

// InviteSender implements application.InviteMailer by enqueueing an invite template job.
type InviteSender struct {
	pub     Publisher
	cfg     *config.Config
	logger  *logrus.Logger
	timeout time.Duration
}

func NewInviteSender(pub Publisher, cfg *config.Config, logger *logrus.Logger) *InviteSender {
	return &InviteSender{pub: pub, cfg: cfg, logger: logger, timeout: 5 * time.Second}
}

func (s *InviteSender) SendInvite(ctx context.Context, d application.InviteDelivery) error {
	if !s.cfg.MailSendEnabled {
		s.logger.WithField("invite_id", d.InviteID).Warn("MAIL_SEND_ENABLED=false; invite email not queued")
		return nil
	}
	if s.pub == nil {
		return errQueueUnavailable
	}
	job := mailer.EmailJob{
		To:       d.Email,
		Template: mailtpl.Invite,
		Data:     mailtpl.NewInviteData(s.cfg, d.Email, string(d.Role), d.Secret, d.ExpiresAt),
	}
	c, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.pub.PublishJSON(c, job); err != nil {
		return err
	}
	s.logger.WithField("invite_id", d.InviteID).Debug("invite email queued")
	return nil
}

var _ application.InviteMailer = (*InviteSender)(nil)
