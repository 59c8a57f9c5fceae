package repository

import (
	"context"
	"time"

	"github.com/oksasatya/course-identity/internal/domain/entity"
)

// InviteRepository persists invites.
type InviteRepository interface {
	// CreateUnlessPending inserts inv unless an unused invite for the same
	// recipient index was created after since and is unexpired at now.
	// It returns ErrConflict in that case. The check and insert are atomic.
	CreateUnlessPending(ctx context.Context, inv *entity.Invite, since, now time.Time) error
	GetByID(ctx context.Context, id string) (*entity.Invite, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*entity.Invite, error)
	// Rotate replaces token hash and expiry of an unused invite.
	// ErrNotFound if absent, ErrAlreadyUsed if consumed.
	Rotate(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// MarkUsed flips used to true only if it was false; ErrNotFound otherwise.
	MarkUsed(ctx context.Context, id string) error
	// DeleteUnused removes an invite that has not been used.
	// ErrNotFound if absent, ErrAlreadyUsed if consumed.
	DeleteUnused(ctx context.Context, id string) error
	List(ctx context.Context, pendingOnly bool, now time.Time) ([]*entity.Invite, error)
}
