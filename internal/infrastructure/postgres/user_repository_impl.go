package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/internal/domain/repository"
	"github.com/oksasatya/course-identity/pkg/pii"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email_cipher, email_index, phone_cipher, phone_index,
	provider, provider_id_cipher, provider_id_index,
	first_name, last_name, avatar_ref, role, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var (
		phoneIdx, provider, providerIdx, avatar, pwd *string
		role                                        string
	)
	if err := row.Scan(&u.ID, &u.Email.Cipher, &u.Email.Index, &u.Phone.Cipher, &phoneIdx,
		&provider, &u.ProviderID.Cipher, &providerIdx,
		&u.FirstName, &u.LastName, &avatar, &role, &pwd, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	u.Phone.Index = deref(phoneIdx)
	u.Provider = deref(provider)
	u.ProviderID.Index = deref(providerIdx)
	u.AvatarRef = deref(avatar)
	u.PasswordHash = deref(pwd)
	u.Role = entity.Role(role)
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, u.ID, u.Email.Cipher, u.Email.Index, u.Phone.Cipher, nullable(u.Phone.Index),
		nullable(u.Provider), u.ProviderID.Cipher, nullable(u.ProviderID.Index),
		u.FirstName, u.LastName, nullable(u.AvatarRef), string(u.Role), nullable(u.PasswordHash),
		u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (r *UserRepository) GetByEmailIndex(ctx context.Context, emailIndex string) (*entity.User, error) {
	return scanUser(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email_index = $1
	`, emailIndex))
}

func (r *UserRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var ok bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *UserRepository) ExistsByEmailIndex(ctx context.Context, emailIndex string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email_index = $1)`, emailIndex)
}

func (r *UserRepository) ExistsByPhoneIndex(ctx context.Context, phoneIndex string) (bool, error) {
	if phoneIndex == "" {
		return false, nil
	}
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE phone_index = $1)`, phoneIndex)
}

// Update writes every mutable column. Email and phone are written as
// cipher+index pairs in the same statement.
func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	res, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users
		SET email_cipher = $1, email_index = $2, phone_cipher = $3, phone_index = $4,
		    first_name = $5, last_name = $6, avatar_ref = $7, password_hash = $8, updated_at = $9
		WHERE id = $10
	`, u.Email.Cipher, u.Email.Index, u.Phone.Cipher, nullable(u.Phone.Index),
		u.FirstName, u.LastName, nullable(u.AvatarRef), nullable(u.PasswordHash), u.UpdatedAt, u.ID)
	if err != nil {
		return mapErr(err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *UserRepository) LinkProvider(ctx context.Context, userID string, provider string, providerID pii.Sealed) (bool, error) {
	res, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users
		SET provider = $1, provider_id_cipher = $2, provider_id_index = $3, updated_at = now()
		WHERE id = $4 AND provider_id_index IS NULL
	`, provider, providerID.Cipher, providerID.Index, userID)
	if err != nil {
		return false, mapErr(err)
	}
	return res.RowsAffected() == 1, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
