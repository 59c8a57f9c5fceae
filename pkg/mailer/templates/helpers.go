package templates

import (
	"net/url"
	"strings"
	"time"

	"github.com/oksasatya/course-identity/config"
)

// Option pattern
type Option func(*EmailData)

func WithRole(role string) Option { return func(d *EmailData) { d.Role = role } }

func WithExpiresAt(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04 MST")
	}
}

// WithInviteURL appends the secret to base as the token query parameter.
func WithInviteURL(base, secret string) Option {
	return func(d *EmailData) { d.InviteURL = InviteLink(base, secret) }
}

// InviteLink builds the acceptance link for an invite secret.
func InviteLink(base, secret string) string {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || base == "" {
		return "?token=" + url.QueryEscape(secret)
	}
	q := u.Query()
	q.Set("token", secret)
	u.RawQuery = q.Encode()
	return u.String()
}

// NewBaseEmailData fills the shared fields from config, then applies opts.
func NewBaseEmailData(cfg *config.Config, typ string, name, email, recipient string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: recipient,
		Type:           typ,

		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		AppName:        cfg.AppName,

		LogoURL:        cfg.LogoURL,
		SupportURL:     cfg.SupportURL,
		PrivacyURL:     cfg.PrivacyURL,
		UnsubscribeURL: cfg.UnsubscribeURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewInviteData(cfg *config.Config, email, role, secret string, expiresAt time.Time, opts ...Option) map[string]any {
	opts = append([]Option{WithRole(role), WithExpiresAt(expiresAt), WithInviteURL(cfg.InviteAcceptURL, secret)}, opts...)
	d := NewBaseEmailData(cfg, Invite, "", email, email, opts...)
	return ToMap(d)
}
