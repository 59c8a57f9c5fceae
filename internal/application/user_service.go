package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/internal/domain/entity"
	repo "github.com/oksasatya/course-identity/internal/domain/repository"
	"github.com/oksasatya/course-identity/internal/verification"
	"github.com/oksasatya/course-identity/pkg/apperror"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/pii"
	"github.com/oksasatya/course-identity/pkg/validation"
)

// Service holds the identity use cases: registration, credential checks,
// social login, pre-login phone verification and profile maintenance.
type Service struct {
	Repo         repo.UserRepository
	Vault        *pii.Vault
	Verifier     verification.Gateway
	JWT          *helpers.JWTManager
	GCS          *storage.Client
	GCSBucket    string
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Validate     *validator.Validate
	Now          func() time.Time
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResponse struct {
	UserID    string      `json:"user_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      entity.Role `json:"role"`
}

func NewService(repo repo.UserRepository, vault *pii.Vault, verifier verification.Gateway, jwt *helpers.JWTManager, logger *logrus.Logger) *Service {
	return &Service{
		Repo:     repo,
		Vault:    vault,
		Verifier: verifier,
		JWT:      jwt,
		Logger:   logger,
		Validate: validation.New(),
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) validate(v any) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(v); err != nil {
		return invalid(err)
	}
	return nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// sealOptional leaves unset fields empty so blank values never share an index.
func (s *Service) sealOptional(f pii.Field, v string) (pii.Sealed, error) {
	if strings.TrimSpace(v) == "" {
		return pii.Sealed{}, nil
	}
	return s.Vault.Seal(f, v)
}

// Register creates a password account. The caller's role field is ignored.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*entity.User, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	email, err := s.Vault.Seal(pii.FieldEmail, req.Email)
	if err != nil {
		return nil, sealErr("seal email", err)
	}
	exists, err := s.Repo.ExistsByEmailIndex(ctx, email.Index)
	if err != nil {
		return nil, storeErr("lookup email", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}
	phone, err := s.sealOptional(pii.FieldPhone, req.Phone)
	if err != nil {
		return nil, sealErr("seal phone", err)
	}
	hash, err := helpers.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}

	now := s.now()
	u := &entity.User{
		ID:           uuid.NewString(),
		Email:        email,
		Phone:        phone,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         entity.DefaultRole,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, storeErr("create user", err)
	}
	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("user registered")
	}
	_ = s.IndexUser(ctx, u)
	return u, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnCompare spends one bcrypt comparison so unknown emails take as long as wrong passwords.
func burnCompare(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = helpers.HashPassword("not-a-real-password")
	})
	_ = helpers.CompareHashAndPassword(dummyHash, password)
}

// ValidateCredentials returns the user for a matching email/password and a
// generic authentication error otherwise.
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*entity.User, error) {
	idx, err := s.Vault.Index(pii.FieldEmail, email)
	if err != nil {
		return nil, sealErr("index email", err)
	}
	u, err := s.Repo.GetByEmailIndex(ctx, idx)
	if err != nil {
		if !isNotFound(err) {
			return nil, storeErr("lookup email", err)
		}
		burnCompare(password)
		return nil, ErrInvalidCredentials
	}
	if !u.HasPassword() {
		burnCompare(password)
		return nil, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid, string(u.Role))
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, apperror.Internal("issue tokens", err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid, string(u.Role))
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, apperror.Internal("issue tokens", err)
	}

	if s.Redis != nil {
		// no PII in the session hash; the profile endpoint decrypts on demand
		fields := map[string]any{
			"user_id":    u.ID,
			"first_name": u.FirstName,
			"role":       string(u.Role),
			"sid":        sid,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		key := helpers.KeySession(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.JWT.RefreshTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Login checks credentials and issues session claims.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, TokenPair, error) {
	if err := s.validate(req); err != nil {
		return nil, TokenPair{}, err
	}
	u, err := s.ValidateCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return loginResponse(u), pair, nil
}

func loginResponse(u *entity.User) *LoginResponse {
	return &LoginResponse{UserID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	// Validate current session id matches the token's sid
	if s.Redis != nil {
		key := helpers.KeySession(u.ID)
		data, rErr := s.Redis.HGetAll(ctx, key).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, "", ErrInvalidCredentials
		}
	}
	// Rotate session id and tokens; role is re-read from the user
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid, string(u.Role))
	if err != nil {
		return TokenPair{}, "", apperror.Internal("issue tokens", err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid, string(u.Role))
	if err != nil {
		return TokenPair{}, "", apperror.Internal("issue tokens", err)
	}
	if s.Redis != nil {
		key := helpers.KeySession(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"sid":        sid,
			"role":       string(u.Role),
			"updated_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, s.JWT.RefreshTTL)
		// the new tokens carry sid; if it was not stored the next refresh fails
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithFields(logrus.Fields{"key": key, "user_id": u.ID}).Warn("session rotation failed")
		}
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, u.ID, nil
}

// Logout drops the server-side session so refresh tokens stop working.
func (s *Service) Logout(ctx context.Context, userID string) {
	if s.Redis == nil || userID == "" {
		return
	}
	if err := helpers.RedisDel(ctx, s.Redis, helpers.KeySession(userID)); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("session delete failed")
	}
}

// SocialLogin finds or creates the user behind an external identity. An existing
// provider link is never overwritten and the role never changes on this path.
func (s *Service) SocialLogin(ctx context.Context, p SocialLoginProfile) (*entity.User, bool, error) {
	if err := s.validate(p); err != nil {
		return nil, false, err
	}
	email, err := s.Vault.Seal(pii.FieldEmail, p.Email)
	if err != nil {
		return nil, false, sealErr("seal email", err)
	}
	providerID, err := s.Vault.Seal(pii.FieldProviderID, p.ProviderID)
	if err != nil {
		return nil, false, sealErr("seal provider id", err)
	}

	u, err := s.Repo.GetByEmailIndex(ctx, email.Index)
	switch {
	case err == nil:
		if u.HasProvider() {
			return u, false, nil
		}
		linked, err := s.Repo.LinkProvider(ctx, u.ID, p.Provider, providerID)
		if err != nil {
			return nil, false, storeErr("link provider", err)
		}
		if linked {
			u.Provider = p.Provider
			u.ProviderID = providerID
		} else if fresh, err := s.Repo.GetByID(ctx, u.ID); err == nil {
			u = fresh
		}
		return u, false, nil
	case !isNotFound(err):
		return nil, false, storeErr("lookup email", err)
	}

	now := s.now()
	u = &entity.User{
		ID:         uuid.NewString(),
		Email:      email,
		ProviderID: providerID,
		Provider:   p.Provider,
		FirstName:  strings.TrimSpace(p.FirstName),
		LastName:   strings.TrimSpace(p.LastName),
		AvatarRef:  p.AvatarURL,
		Role:       entity.DefaultRole,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			// lost a race with a concurrent sign-up for the same email
			existing, gErr := s.Repo.GetByEmailIndex(ctx, email.Index)
			if gErr != nil {
				return nil, false, storeErr("lookup email", gErr)
			}
			return existing, false, nil
		}
		return nil, false, storeErr("create user", err)
	}
	_ = s.IndexUser(ctx, u)
	return u, true, nil
}

// SendOTP starts a phone verification before login.
func (s *Service) SendOTP(ctx context.Context, req SendOTPRequest) (verification.SendResult, error) {
	return s.Verifier.SendOTP(ctx, req.Phone)
}

// VerifyPreLogin checks the code and reports whether the phone belongs to a known user.
func (s *Service) VerifyPreLogin(ctx context.Context, req VerifyOTPRequest) (verification.VerifyResult, error) {
	return s.Verifier.VerifyOTP(ctx, req.Phone, req.Code)
}

// FindUserByEmail resolves a user through the email blind index.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	idx, err := s.Vault.Index(pii.FieldEmail, email)
	if err != nil {
		return nil, sealErr("index email", err)
	}
	u, err := s.Repo.GetByEmailIndex(ctx, idx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr("lookup email", err)
	}
	return s.ToProfile(u)
}

// ToProfile decrypts a user for display. A record that fails authentication is
// reported as an integrity error, never as partial data.
func (s *Service) ToProfile(u *entity.User) (*entity.Profile, error) {
	email, err := s.Vault.Open(pii.FieldEmail, u.Email.Cipher)
	if err != nil {
		return nil, sealErr("open email", err)
	}
	var phone string
	if len(u.Phone.Cipher) > 0 {
		if phone, err = s.Vault.Open(pii.FieldPhone, u.Phone.Cipher); err != nil {
			return nil, sealErr("open phone", err)
		}
	}
	return &entity.Profile{
		ID:        u.ID,
		Email:     email,
		Phone:     phone,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarRef: u.AvatarRef,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr("get user", err)
	}
	return s.ToProfile(u)
}

// UpdateProfile changes display names and, when given, re-seals email or phone.
// Ciphertext and index are replaced together as one pii.Sealed value.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileRequest) (*entity.Profile, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr("get user", err)
	}
	if in.FirstName != "" {
		u.FirstName = strings.TrimSpace(in.FirstName)
	}
	if in.LastName != "" {
		u.LastName = strings.TrimSpace(in.LastName)
	}
	if in.Email != "" {
		email, err := s.Vault.Seal(pii.FieldEmail, in.Email)
		if err != nil {
			return nil, sealErr("seal email", err)
		}
		if email.Index != u.Email.Index {
			taken, err := s.Repo.ExistsByEmailIndex(ctx, email.Index)
			if err != nil {
				return nil, storeErr("lookup email", err)
			}
			if taken {
				return nil, ErrEmailTaken
			}
			u.Email = email
		}
	}
	if in.Phone != "" {
		phone, err := s.Vault.Seal(pii.FieldPhone, in.Phone)
		if err != nil {
			return nil, sealErr("seal phone", err)
		}
		u.Phone = phone
	}
	u.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, storeErr("update user", err)
	}

	// refresh the live session only; a logged-out user has no hash to update
	if s.Redis != nil {
		key := helpers.KeySession(u.ID)
		if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
			pipe := s.Redis.Pipeline()
			pipe.HSet(ctx, key, map[string]any{
				"first_name": u.FirstName,
				"updated_at": nowRFC3339(),
			})
			pipe.Expire(ctx, key, ttl)
			if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
				s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
			}
		}
	}

	_ = s.IndexUser(ctx, u)
	return s.ToProfile(u)
}

// UploadAvatar stores an image in GCS and records its URL as the avatar reference.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", storeErr("get user", err)
	}
	url, err := s.uploadAvatarObject(ctx, userID, r, filename, contentType)
	if err != nil {
		return "", err
	}
	u.AvatarRef = url
	u.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, u); err != nil {
		return "", storeErr("update user", err)
	}
	_ = s.IndexUser(ctx, u)
	return url, nil
}

func (s *Service) uploadAvatarObject(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", apperror.Internal("avatar storage not configured", nil)
	}
	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, id+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", apperror.Internal("upload avatar", err)
	}
	return url, nil
}

// IndexUser pushes display fields to the directory index. PII never leaves the vault.
func (s *Service) IndexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"role":       string(u.Role),
		"avatar_ref": u.AvatarRef,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers matches names in the directory index.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"first_name^2", "last_name", "role"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, apperror.Internal("search users", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperror.Internal("decode search", err)
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
