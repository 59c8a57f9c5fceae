package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/internal/domain/repository"
)

type InviteRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

func NewInviteRepository(pool *pgxpool.Pool) *InviteRepository {
	return &InviteRepository{pool: pool, tx: NewTxManager(pool)}
}

const inviteColumns = `id, recipient_cipher, recipient_index, role, token_hash,
	expires_at, used, issued_by, created_at, updated_at`

func scanInvite(row pgx.Row) (*entity.Invite, error) {
	inv := &entity.Invite{}
	var (
		role     string
		issuedBy *string
	)
	if err := row.Scan(&inv.ID, &inv.Recipient.Cipher, &inv.Recipient.Index, &role, &inv.TokenHash,
		&inv.ExpiresAt, &inv.Used, &issuedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	inv.Role = entity.Role(role)
	inv.IssuedBy = deref(issuedBy)
	return inv, nil
}

// CreateUnlessPending serializes on the recipient index with a transaction-scoped
// advisory lock so concurrent creates for one email cannot both pass the check.
func (r *InviteRepository) CreateUnlessPending(ctx context.Context, inv *entity.Invite, since, now time.Time) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.pool)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, inv.Recipient.Index); err != nil {
			return err
		}
		var pending bool
		if err := q.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM invites
				WHERE recipient_index = $1 AND used = false AND created_at > $2 AND expires_at >= $3
			)
		`, inv.Recipient.Index, since, now).Scan(&pending); err != nil {
			return err
		}
		if pending {
			return repository.ErrConflict
		}
		_, err := q.Exec(ctx, `
			INSERT INTO invites (`+inviteColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, inv.ID, inv.Recipient.Cipher, inv.Recipient.Index, string(inv.Role), inv.TokenHash,
			inv.ExpiresAt, inv.Used, nullable(inv.IssuedBy), inv.CreatedAt, inv.UpdatedAt)
		return mapErr(err)
	})
}

func (r *InviteRepository) GetByID(ctx context.Context, id string) (*entity.Invite, error) {
	return scanInvite(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+inviteColumns+` FROM invites WHERE id = $1
	`, id))
}

// GetByTokenHash locks the row when called inside a transaction so a
// concurrent accept waits for the first one to commit.
func (r *InviteRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*entity.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token_hash = $1`
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		query += ` FOR UPDATE`
	}
	return scanInvite(conn(ctx, r.pool).QueryRow(ctx, query, tokenHash))
}

// usedOrMissing resolves why a conditional update touched no rows.
func (r *InviteRepository) usedOrMissing(ctx context.Context, id string) error {
	var used bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT used FROM invites WHERE id = $1`, id).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	if used {
		return repository.ErrAlreadyUsed
	}
	return repository.ErrNotFound
}

func (r *InviteRepository) Rotate(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	res, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE invites
		SET token_hash = $1, expires_at = $2, updated_at = now()
		WHERE id = $3 AND used = false
	`, tokenHash, expiresAt, id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return r.usedOrMissing(ctx, id)
	}
	return nil
}

func (r *InviteRepository) MarkUsed(ctx context.Context, id string) error {
	res, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE invites SET used = true, updated_at = now()
		WHERE id = $1 AND used = false
	`, id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *InviteRepository) DeleteUnused(ctx context.Context, id string) error {
	res, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM invites WHERE id = $1 AND used = false`, id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return r.usedOrMissing(ctx, id)
	}
	return nil
}

func (r *InviteRepository) List(ctx context.Context, pendingOnly bool, now time.Time) ([]*entity.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites`
	args := []any{}
	if pendingOnly {
		query += ` WHERE used = false AND expires_at >= $1`
		args = append(args, now)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*entity.Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

var _ repository.InviteRepository = (*InviteRepository)(nil)
