//go:build integration

package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/oksasatya/course-identity/internal/testutil/containers"
	"github.com/oksasatya/course-identity/pkg/helpers"
)

type SessionSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	svc   *Service
}

func TestSessionSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *SessionSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	logger, _ := testLogger()
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	s.svc = NewService(newMemUsers(), testVault(s.T()), nil, jwt, logger)
	s.svc.Redis = s.redis.Client
}

func (s *SessionSuite) login() (string, TokenPair) {
	u, err := s.svc.Register(s.ctx, RegisterRequest{Email: "jane@example.com", Password: "password123", FirstName: "Jane"})
	s.Require().NoError(err)
	_, pair, err := s.svc.Login(s.ctx, LoginRequest{Email: "jane@example.com", Password: "password123"})
	s.Require().NoError(err)
	return u.ID, pair
}

func (s *SessionSuite) TestSessionHashHoldsNoPII() {
	uid, _ := s.login()

	data, err := s.redis.Client.HGetAll(s.ctx, helpers.KeySession(uid)).Result()
	s.Require().NoError(err)
	s.NotEmpty(data["sid"])
	s.NotContains(data, "email")
	s.NotContains(data, "phone")

	ttl, err := s.redis.Client.TTL(s.ctx, helpers.KeySession(uid)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *SessionSuite) TestRefresh_OldTokenStopsWorking() {
	uid, pair := s.login()

	next, got, err := s.svc.Refresh(s.ctx, pair.RefreshToken)
	s.Require().NoError(err)
	s.Equal(uid, got)

	_, _, err = s.svc.Refresh(s.ctx, pair.RefreshToken)
	s.ErrorIs(err, ErrInvalidCredentials)

	_, _, err = s.svc.Refresh(s.ctx, next.RefreshToken)
	s.NoError(err)
}

func (s *SessionSuite) TestLogout_RevokesRefresh() {
	uid, pair := s.login()

	s.svc.Logout(s.ctx, uid)
	n, err := s.redis.Client.Exists(s.ctx, helpers.KeySession(uid)).Result()
	s.Require().NoError(err)
	s.Zero(n)

	_, _, err = s.svc.Refresh(s.ctx, pair.RefreshToken)
	s.ErrorIs(err, ErrInvalidCredentials)
}
