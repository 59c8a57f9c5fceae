//go:build integration

package postgres_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/internal/domain/entity"
	"github.com/oksasatya/course-identity/internal/domain/repository"
	pginfra "github.com/oksasatya/course-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/course-identity/internal/testutil/containers"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/pii"
)

type RepositorySuite struct {
	suite.Suite
	ctx     context.Context
	pg      *containers.PostgresContainer
	users   *pginfra.UserRepository
	invites *pginfra.InviteRepository
	tx      *pginfra.TxManager
	vault   *pii.Vault
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.users = pginfra.NewUserRepository(s.pg.Pool)
	s.invites = pginfra.NewInviteRepository(s.pg.Pool)
	s.tx = pginfra.NewTxManager(s.pg.Pool)

	idx, err := pii.NewBlindIndexer(bytes.Repeat([]byte{0x11}, pii.MinKeyLen))
	s.Require().NoError(err)
	s.vault, err = pii.NewVault(bytes.Repeat([]byte{0x22}, pii.MinKeyLen), idx)
	s.Require().NoError(err)
}

func (s *RepositorySuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "invites", "users"))
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func (s *RepositorySuite) seal(email string) pii.Sealed {
	sealed, err := s.vault.Seal(pii.FieldEmail, email)
	s.Require().NoError(err)
	return sealed
}

func (s *RepositorySuite) newInvite(email string, createdAt time.Time, ttl time.Duration) *entity.Invite {
	return &entity.Invite{
		ID:        uuid.NewString(),
		Recipient: s.seal(email),
		Role:      entity.RoleTeacher,
		TokenHash: helpers.HashToken(uuid.NewString()),
		ExpiresAt: createdAt.Add(ttl),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func (s *RepositorySuite) countInvites(index string) int {
	var n int
	s.Require().NoError(s.pg.Pool.QueryRow(s.ctx,
		`SELECT count(*) FROM invites WHERE recipient_index = $1`, index).Scan(&n))
	return n
}

func (s *RepositorySuite) TestCreateUnlessPending_Window() {
	t0 := now()
	first := s.newInvite("dup@example.com", t0.Add(-2*time.Hour), 24*time.Hour)
	s.Require().NoError(s.invites.CreateUnlessPending(s.ctx, first, t0.Add(-24*time.Hour), t0))

	inside := s.newInvite("dup@example.com", t0, 24*time.Hour)
	err := s.invites.CreateUnlessPending(s.ctx, inside, t0.Add(-24*time.Hour), t0)
	s.ErrorIs(err, repository.ErrConflict)

	// window start after the first invite was created
	after := s.newInvite("dup@example.com", t0, 24*time.Hour)
	s.NoError(s.invites.CreateUnlessPending(s.ctx, after, t0.Add(-time.Hour), t0))
	s.Equal(2, s.countInvites(first.Recipient.Index))
}

func (s *RepositorySuite) TestCreateUnlessPending_ExpiredOrUsedDoNotBlock() {
	t0 := now()
	expired := s.newInvite("e@example.com", t0.Add(-3*time.Hour), time.Hour)
	s.Require().NoError(s.invites.CreateUnlessPending(s.ctx, expired, t0.Add(-24*time.Hour), t0.Add(-3*time.Hour)))
	fresh := s.newInvite("e@example.com", t0, time.Hour)
	s.NoError(s.invites.CreateUnlessPending(s.ctx, fresh, t0.Add(-24*time.Hour), t0))

	s.Require().NoError(s.invites.MarkUsed(s.ctx, fresh.ID))
	again := s.newInvite("e@example.com", t0, time.Hour)
	s.NoError(s.invites.CreateUnlessPending(s.ctx, again, t0.Add(-24*time.Hour), t0))
}

func (s *RepositorySuite) TestCreateUnlessPending_ConcurrentSingleWinner() {
	const goroutines = 20
	t0 := now()
	recipient := s.seal("race@example.com")

	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		conflicts atomic.Int32
		other     atomic.Int32
	)
	batch := make([]*entity.Invite, goroutines)
	for i := range batch {
		batch[i] = s.newInvite("race@example.com", t0, 24*time.Hour)
		batch[i].Recipient = recipient
	}
	for _, inv := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := s.invites.CreateUnlessPending(s.ctx, inv, t0.Add(-24*time.Hour), t0); {
			case err == nil:
				created.Add(1)
			case errors.Is(err, repository.ErrConflict):
				conflicts.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
	s.Zero(other.Load())
	s.Equal(1, s.countInvites(recipient.Index))
}

func (s *RepositorySuite) TestRotateAndDelete_ClassifyUsedOrMissing() {
	t0 := now()
	inv := s.newInvite("r@example.com", t0, time.Hour)
	s.Require().NoError(s.invites.CreateUnlessPending(s.ctx, inv, t0.Add(-time.Hour), t0))

	newHash := helpers.HashToken("rotated")
	s.Require().NoError(s.invites.Rotate(s.ctx, inv.ID, newHash, t0.Add(2*time.Hour)))
	got, err := s.invites.GetByTokenHash(s.ctx, newHash)
	s.Require().NoError(err)
	s.Equal(inv.ID, got.ID)
	_, err = s.invites.GetByTokenHash(s.ctx, inv.TokenHash)
	s.ErrorIs(err, repository.ErrNotFound)

	missing := uuid.NewString()
	s.ErrorIs(s.invites.Rotate(s.ctx, missing, newHash, t0), repository.ErrNotFound)
	s.ErrorIs(s.invites.DeleteUnused(s.ctx, missing), repository.ErrNotFound)

	s.Require().NoError(s.invites.MarkUsed(s.ctx, inv.ID))
	s.ErrorIs(s.invites.MarkUsed(s.ctx, inv.ID), repository.ErrNotFound)
	s.ErrorIs(s.invites.Rotate(s.ctx, inv.ID, helpers.HashToken("x"), t0), repository.ErrAlreadyUsed)
	s.ErrorIs(s.invites.DeleteUnused(s.ctx, inv.ID), repository.ErrAlreadyUsed)

	got, err = s.invites.GetByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.True(got.Used)
	s.Equal(newHash, got.TokenHash, "used invites are never rotated")
}

func (s *RepositorySuite) TestList_PendingView() {
	t0 := now()
	live := s.newInvite("l@example.com", t0, time.Hour)
	dead := s.newInvite("d@example.com", t0.Add(-2*time.Hour), time.Hour)
	s.Require().NoError(s.invites.CreateUnlessPending(s.ctx, live, t0.Add(-time.Hour), t0))
	s.Require().NoError(s.invites.CreateUnlessPending(s.ctx, dead, t0.Add(-time.Hour), t0.Add(-2*time.Hour)))

	all, err := s.invites.List(s.ctx, false, t0)
	s.Require().NoError(err)
	s.Len(all, 2)
	pending, err := s.invites.List(s.ctx, true, t0)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(live.ID, pending[0].ID)
}

func (s *RepositorySuite) TestAcceptInvite_ConcurrentSingleUse() {
	svc := application.NewInviteService(s.invites, s.users, s.tx, s.vault, nil, nil)
	root := application.Issuer{Role: entity.RoleSuperAdmin}
	issued, err := svc.CreateInvite(s.ctx, application.CreateInviteRequest{Email: "once@example.com", Role: "MONITOR"}, root)
	s.Require().NoError(err)

	const goroutines = 8
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		refused  atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.AcceptInvite(s.ctx, application.AcceptInviteRequest{
				Token: issued.Secret, Password: "password123", FirstName: "Once",
			})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, application.ErrInviteNotFound), errors.Is(err, application.ErrEmailTaken):
				refused.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), accepted.Load())
	s.Equal(int32(goroutines-1), refused.Load())

	var n int
	s.Require().NoError(s.pg.Pool.QueryRow(s.ctx, `SELECT count(*) FROM users`).Scan(&n))
	s.Equal(1, n)
	u, err := s.users.GetByEmailIndex(s.ctx, s.seal("once@example.com").Index)
	s.Require().NoError(err)
	s.Equal(entity.RoleMonitor, u.Role)
}

func (s *RepositorySuite) TestWithinTx_RollsBackOnError() {
	t0 := now()
	u := &entity.User{ID: uuid.NewString(), Email: s.seal("tx@example.com"), Role: entity.RoleStudent, CreatedAt: t0, UpdatedAt: t0}
	err := s.tx.WithinTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.users.Create(ctx, u))
		return repository.ErrConflict
	})
	s.ErrorIs(err, repository.ErrConflict)

	_, err = s.users.GetByID(s.ctx, u.ID)
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *RepositorySuite) TestUsers_DuplicateEmailConflicts() {
	t0 := now()
	email := s.seal("dup-user@example.com")
	s.Require().NoError(s.users.Create(s.ctx, &entity.User{ID: uuid.NewString(), Email: email, Role: entity.RoleStudent, CreatedAt: t0, UpdatedAt: t0}))
	err := s.users.Create(s.ctx, &entity.User{ID: uuid.NewString(), Email: email, Role: entity.RoleStudent, CreatedAt: t0, UpdatedAt: t0})
	s.ErrorIs(err, repository.ErrConflict)

	ok, err := s.users.ExistsByEmailIndex(s.ctx, email.Index)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.users.ExistsByPhoneIndex(s.ctx, "")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RepositorySuite) TestLinkProvider_FirstWriterWins() {
	t0 := now()
	u := &entity.User{ID: uuid.NewString(), Email: s.seal("link@example.com"), Role: entity.RoleStudent, CreatedAt: t0, UpdatedAt: t0}
	s.Require().NoError(s.users.Create(s.ctx, u))

	google, err := s.vault.Seal(pii.FieldProviderID, "g-1")
	s.Require().NoError(err)
	github, err := s.vault.Seal(pii.FieldProviderID, "gh-9")
	s.Require().NoError(err)

	linked, err := s.users.LinkProvider(s.ctx, u.ID, "google", google)
	s.Require().NoError(err)
	s.True(linked)
	linked, err = s.users.LinkProvider(s.ctx, u.ID, "github", github)
	s.Require().NoError(err)
	s.False(linked)

	got, err := s.users.GetByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("google", got.Provider)
	s.Equal(google.Index, got.ProviderID.Index)
}
