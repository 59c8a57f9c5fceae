package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/pkg/pii"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
)

// UserRepository defines the persistence operations on users. Lookups by PII
// take blind indexes, never plaintext.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmailIndex(ctx context.Context, emailIndex string) (*entity.User, error)
	ExistsByEmailIndex(ctx context.Context, emailIndex string) (bool, error)
	ExistsByPhoneIndex(ctx context.Context, phoneIndex string) (bool, error)
	Update(ctx context.Context, u *entity.User) error
	// LinkProvider sets the provider id only if none is linked yet and reports whether it did.
	LinkProvider(ctx context.Context, userID string, provider string, providerID pii.Sealed) (bool, error)
}

// Transactor runs fn in one transaction; repositories called with the ctx passed
// to fn take part in it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
