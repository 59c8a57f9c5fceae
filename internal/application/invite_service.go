package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	repo "github.com/oksasatya/course-identity/internal/domain/repository"
	"github.com/oksasatya/course-identity/pkg/apperror"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/pii"
	"github.com/oksasatya/course-identity/pkg/validation"
)

const (
	DefaultInviteTTL    = 24 * time.Hour
	DefaultDedupeWindow = 24 * time.Hour
)

// InviteDelivery carries everything the mail collaborator needs to deliver one invite.
type InviteDelivery struct {
	InviteID  string
	Email     string
	Secret    string
	Role      entity.Role
	ExpiresAt time.Time
}

// UserDirectory receives accounts created outside Register so they show up in search.
type UserDirectory interface {
	IndexUser(ctx context.Context, u *entity.User) error
}

// InviteMailer delivers invite links. Delivery failure never undoes the invite.
type InviteMailer interface {
	SendInvite(ctx context.Context, d InviteDelivery) error
}

// Issuer is the authenticated account creating or managing invites.
type Issuer struct {
	ID   string
	Role entity.Role
}

// IssuedInvite is returned once on create and resend. Secret is unrecoverable afterwards.
type IssuedInvite struct {
	ID        string      `json:"id"`
	Role      entity.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
	Secret    string      `json:"token"`
}

// InviteService is the invite ledger: single-use, expiring capabilities to
// create an account at a pre-assigned role.
type InviteService struct {
	Invites      repo.InviteRepository
	Users        repo.UserRepository
	Tx           repo.Transactor
	Vault        *pii.Vault
	Mailer       InviteMailer
	Directory    UserDirectory
	Logger       *logrus.Logger
	TTL          time.Duration
	DedupeWindow time.Duration
	Validate     *validator.Validate
	Now          func() time.Time
}

func NewInviteService(invites repo.InviteRepository, users repo.UserRepository, tx repo.Transactor, vault *pii.Vault, mailer InviteMailer, logger *logrus.Logger) *InviteService {
	return &InviteService{
		Invites:      invites,
		Users:        users,
		Tx:           tx,
		Vault:        vault,
		Mailer:       mailer,
		Logger:       logger,
		TTL:          DefaultInviteTTL,
		DedupeWindow: DefaultDedupeWindow,
		Validate:     validation.New(),
		Now:          time.Now,
	}
}

func (s *InviteService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InviteService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultInviteTTL
}

func (s *InviteService) window() time.Duration {
	if s.DedupeWindow > 0 {
		return s.DedupeWindow
	}
	return DefaultDedupeWindow
}

func (s *InviteService) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithinTx(ctx, fn)
}

func newSecret() (string, string, error) {
	secret, err := helpers.GenToken(helpers.InviteSecretBytes)
	if err != nil {
		return "", "", apperror.Internal("generate invite secret", err)
	}
	return secret, helpers.HashToken(secret), nil
}

// CreateInvite issues an invite for email at role. It fails with Conflict when the
// email is already registered or a live invite for it was sent within the dedupe window.
func (s *InviteService) CreateInvite(ctx context.Context, req CreateInviteRequest, by Issuer) (*IssuedInvite, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(req); err != nil {
			return nil, invalid(err)
		}
	}
	role, ok := entity.ParseRole(req.Role)
	if !ok {
		return nil, apperror.Validation("unknown role")
	}
	if !by.Role.CanAssign(role) {
		return nil, ErrRoleNotAssignable
	}

	recipient, err := s.Vault.Seal(pii.FieldEmail, req.Email)
	if err != nil {
		return nil, sealErr("seal email", err)
	}
	exists, err := s.Users.ExistsByEmailIndex(ctx, recipient.Index)
	if err != nil {
		return nil, storeErr("lookup email", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	secret, hash, err := newSecret()
	if err != nil {
		return nil, err
	}
	now := s.now()
	inv := &entity.Invite{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Role:      role,
		TokenHash: hash,
		ExpiresAt: now.Add(s.ttl()),
		IssuedBy:  by.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Invites.CreateUnlessPending(ctx, inv, now.Add(-s.window()), now); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrInvitePending
		}
		return nil, storeErr("create invite", err)
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"invite_id": inv.ID, "role": role, "issued_by": by.ID}).Info("invite created")
	}

	s.deliver(ctx, inv, strings.TrimSpace(req.Email), secret)
	return &IssuedInvite{ID: inv.ID, Role: inv.Role, ExpiresAt: inv.ExpiresAt, Secret: secret}, nil
}

// deliver hands the secret to the mailer. The invite row is already committed,
// so failure is only reported.
func (s *InviteService) deliver(ctx context.Context, inv *entity.Invite, email, secret string) {
	if s.Mailer == nil {
		return
	}
	err := s.Mailer.SendInvite(ctx, InviteDelivery{
		InviteID:  inv.ID,
		Email:     email,
		Secret:    secret,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
	})
	if err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("invite_id", inv.ID).Error("invite delivery failed")
	}
}

// lookup resolves a presented secret to a live invite.
// Unknown and used invites are NotFound; past expiresAt is Expired.
func (s *InviteService) lookup(ctx context.Context, secret string) (*entity.Invite, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrInviteNotFound
	}
	inv, err := s.Invites.GetByTokenHash(ctx, helpers.HashToken(secret))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInviteNotFound
		}
		return nil, storeErr("get invite", err)
	}
	if inv.Used {
		return nil, ErrInviteNotFound
	}
	if inv.Expired(s.now()) {
		return nil, ErrInviteExpired
	}
	return inv, nil
}

func (s *InviteService) grant(inv *entity.Invite) (*InviteGrant, error) {
	email, err := s.Vault.Open(pii.FieldEmail, inv.Recipient.Cipher)
	if err != nil {
		return nil, sealErr("open invite recipient", err)
	}
	return &InviteGrant{InviteID: inv.ID, Email: email, Role: inv.Role, ExpiresAt: inv.ExpiresAt}, nil
}

// ValidateInvite reports what a secret grants without consuming it.
func (s *InviteService) ValidateInvite(ctx context.Context, secret string) (*InviteGrant, error) {
	inv, err := s.lookup(ctx, secret)
	if err != nil {
		return nil, err
	}
	return s.grant(inv)
}

// AcceptInvite consumes the invite and creates the account. Email and role come
// from the invite; whatever the caller sent for them is ignored.
func (s *InviteService) AcceptInvite(ctx context.Context, req AcceptInviteRequest) (*entity.User, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(req); err != nil {
			return nil, invalid(err)
		}
	}
	hash, err := helpers.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}

	var created *entity.User
	err = s.withinTx(ctx, func(ctx context.Context) error {
		inv, err := s.lookup(ctx, req.Token)
		if err != nil {
			return err
		}
		exists, err := s.Users.ExistsByEmailIndex(ctx, inv.Recipient.Index)
		if err != nil {
			return storeErr("lookup email", err)
		}
		if exists {
			return ErrEmailTaken
		}
		var phone pii.Sealed
		if strings.TrimSpace(req.Phone) != "" {
			if phone, err = s.Vault.Seal(pii.FieldPhone, req.Phone); err != nil {
				return sealErr("seal phone", err)
			}
		}

		now := s.now()
		u := &entity.User{
			ID:           uuid.NewString(),
			Email:        inv.Recipient,
			Phone:        phone,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Role:         inv.Role,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.Users.Create(ctx, u); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrEmailTaken
			}
			return storeErr("create user", err)
		}
		if err := s.Invites.MarkUsed(ctx, inv.ID); err != nil {
			if isNotFound(err) {
				// consumed concurrently
				return ErrInviteNotFound
			}
			return storeErr("mark invite used", err)
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": created.ID, "role": created.Role}).Info("invite accepted")
	}
	if s.Directory != nil {
		// the directory logs its own failures; the account already exists
		_ = s.Directory.IndexUser(ctx, created)
	}
	return created, nil
}

// managed loads an invite the issuer is allowed to manage. Issuers may only touch
// invites for roles they could have created themselves.
func (s *InviteService) managed(ctx context.Context, id string, by Issuer) (*entity.Invite, error) {
	inv, err := s.Invites.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInviteNotFound
		}
		return nil, storeErr("get invite", err)
	}
	if !by.Role.CanAssign(inv.Role) {
		return nil, ErrRoleNotAssignable
	}
	return inv, nil
}

// ResendInvite rotates the secret and expiry of an unused invite and redelivers it.
// The previous secret stops working.
func (s *InviteService) ResendInvite(ctx context.Context, id string, by Issuer) (*IssuedInvite, error) {
	inv, err := s.managed(ctx, id, by)
	if err != nil {
		return nil, err
	}
	if inv.Used {
		return nil, ErrInviteUsed
	}
	email, err := s.Vault.Open(pii.FieldEmail, inv.Recipient.Cipher)
	if err != nil {
		return nil, sealErr("open invite recipient", err)
	}

	secret, hash, err := newSecret()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.ttl())
	if err := s.Invites.Rotate(ctx, inv.ID, hash, expiresAt); err != nil {
		switch {
		case isNotFound(err):
			return nil, ErrInviteNotFound
		case errors.Is(err, repo.ErrAlreadyUsed):
			return nil, ErrInviteUsed
		}
		return nil, storeErr("rotate invite", err)
	}
	inv.TokenHash = hash
	inv.ExpiresAt = expiresAt
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"invite_id": inv.ID, "issued_by": by.ID}).Info("invite resent")
	}

	s.deliver(ctx, inv, email, secret)
	return &IssuedInvite{ID: inv.ID, Role: inv.Role, ExpiresAt: expiresAt, Secret: secret}, nil
}

// CancelInvite deletes an invite that has not been used.
func (s *InviteService) CancelInvite(ctx context.Context, id string, by Issuer) error {
	if _, err := s.managed(ctx, id, by); err != nil {
		return err
	}
	if err := s.Invites.DeleteUnused(ctx, id); err != nil {
		switch {
		case isNotFound(err):
			return ErrInviteNotFound
		case errors.Is(err, repo.ErrAlreadyUsed):
			return ErrInviteUsed
		}
		return storeErr("delete invite", err)
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"invite_id": id, "issued_by": by.ID}).Info("invite cancelled")
	}
	return nil
}

// ListInvites returns every invite, or only pending ones, with recipients decrypted.
func (s *InviteService) ListInvites(ctx context.Context, pendingOnly bool) ([]entity.InviteView, error) {
	now := s.now()
	invs, err := s.Invites.List(ctx, pendingOnly, now)
	if err != nil {
		return nil, storeErr("list invites", err)
	}
	out := make([]entity.InviteView, 0, len(invs))
	for _, inv := range invs {
		email, err := s.Vault.Open(pii.FieldEmail, inv.Recipient.Cipher)
		if err != nil {
			return nil, sealErr("open invite recipient", err)
		}
		out = append(out, entity.InviteView{
			ID:        inv.ID,
			Email:     email,
			Role:      inv.Role,
			Status:    inv.Status(now),
			ExpiresAt: inv.ExpiresAt,
			IssuedBy:  inv.IssuedBy,
			CreatedAt: inv.CreatedAt,
		})
	}
	return out, nil
}
