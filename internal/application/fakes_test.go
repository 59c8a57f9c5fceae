package application

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	repo "github.com/oksasatya/course-identity/internal/domain/repository"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/phone"
	"github.com/oksasatya/course-identity/pkg/pii"
)

func init() { helpers.PasswordCost = bcrypt.MinCost }

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*entity.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*entity.User{}} }

func cloneUser(u *entity.User) *entity.User {
	c := *u
	return &c
}

func (m *memUsers) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email.Index == u.Email.Index {
			return repo.ErrConflict
		}
	}
	m.byID[u.ID] = cloneUser(u)
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *memUsers) GetByEmailIndex(_ context.Context, idx string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email.Index == idx {
			return cloneUser(u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) ExistsByEmailIndex(ctx context.Context, idx string) (bool, error) {
	_, err := m.GetByEmailIndex(ctx, idx)
	return err == nil, nil
}

func (m *memUsers) ExistsByPhoneIndex(_ context.Context, idx string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if idx != "" && u.Phone.Index == idx {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) Update(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return repo.ErrNotFound
	}
	for id, x := range m.byID {
		if id != u.ID && x.Email.Index == u.Email.Index {
			return repo.ErrConflict
		}
	}
	m.byID[u.ID] = cloneUser(u)
	return nil
}

func (m *memUsers) LinkProvider(_ context.Context, userID, provider string, providerID pii.Sealed) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if u.HasProvider() {
		return false, nil
	}
	u.Provider = provider
	u.ProviderID = providerID
	return true, nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memInvites struct {
	mu   sync.Mutex
	byID map[string]*entity.Invite
}

func newMemInvites() *memInvites { return &memInvites{byID: map[string]*entity.Invite{}} }

func (m *memInvites) CreateUnlessPending(_ context.Context, inv *entity.Invite, since, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Recipient.Index == inv.Recipient.Index && !x.Used && x.CreatedAt.After(since) && !x.Expired(now) {
			return repo.ErrConflict
		}
	}
	c := *inv
	m.byID[inv.ID] = &c
	return nil
}

func (m *memInvites) GetByID(_ context.Context, id string) (*entity.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *inv
	return &c, nil
}

func (m *memInvites) GetByTokenHash(_ context.Context, h string) (*entity.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.byID {
		if inv.TokenHash == h {
			c := *inv
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memInvites) Rotate(_ context.Context, id, h string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	if inv.Used {
		return repo.ErrAlreadyUsed
	}
	inv.TokenHash, inv.ExpiresAt = h, exp
	return nil
}

func (m *memInvites) MarkUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok || inv.Used {
		return repo.ErrNotFound
	}
	inv.Used = true
	return nil
}

func (m *memInvites) DeleteUnused(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	if inv.Used {
		return repo.ErrAlreadyUsed
	}
	delete(m.byID, id)
	return nil
}

func (m *memInvites) List(_ context.Context, pendingOnly bool, now time.Time) ([]*entity.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.Invite{}
	for _, inv := range m.byID {
		if pendingOnly && inv.Status(now) != entity.InvitePending {
			continue
		}
		c := *inv
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// setUsed simulates a consumed invite without going through AcceptInvite.
func (m *memInvites) setUsed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Used = true
}

// noTx runs fn directly; rollback is not simulated.
type noTx struct{ calls int }

func (t *noTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []InviteDelivery
	err  error
}

func (f *fakeMailer) SendInvite(_ context.Context, d InviteDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, d)
	return nil
}

func (f *fakeMailer) last() InviteDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

var errMailDown = errors.New("mail queue down")

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func testVault(t *testing.T) *pii.Vault {
	t.Helper()
	idx, err := pii.NewBlindIndexer(bytes.Repeat([]byte{0x5a}, pii.MinKeyLen))
	require.NoError(t, err)
	n, err := phone.NewNormalizer("IN", "")
	require.NoError(t, err)
	v, err := pii.NewVault(bytes.Repeat([]byte{0xa5}, pii.MinKeyLen), idx,
		pii.WithCanonicalizer(pii.FieldPhone, n.Canonical))
	require.NoError(t, err)
	return v
}

func testLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

type fakeDirectory struct {
	mu      sync.Mutex
	indexed []string
	err     error
}

func (f *fakeDirectory) IndexUser(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, u.ID)
	return f.err
}
