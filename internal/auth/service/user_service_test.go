package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ebuchanan1123/autopiece/config"
	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
	"github.com/ebuchanan1123/autopiece/internal/auth/dto"
	"github.com/ebuchanan1123/autopiece/internal/auth/password"
	"github.com/ebuchanan1123/autopiece/internal/auth/service"
	autherror "github.com/ebuchanan1123/autopiece/internal/errors"
	"github.com/ebuchanan1123/autopiece/internal/mocks"
)

type userServiceDeps struct {
	users    *mocks.MockUserRepository
	tokens   *mocks.MockTokenGenerator
	sessions *mocks.MockSessionManager
}

func newUserService(t *testing.T) (*service.UserService, userServiceDeps) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	deps := userServiceDeps{
		users:    mocks.NewMockUserRepository(ctrl),
		tokens:   mocks.NewMockTokenGenerator(ctrl),
		sessions: mocks.NewMockSessionManager(ctrl),
	}

	passwords, err := password.NewManager(password.DefaultParams())
	require.NoError(t, err)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			MaxLoginFailures: 5,
			LockDuration:     10 * time.Minute,
		},
	}

	s := service.NewUserService(deps.users, deps.tokens, deps.sessions, passwords, cfg, zap.NewNop())

	return s, deps
}

func argon2Hash(t *testing.T, plaintext string) string {
	t.Helper()

	m, err := password.NewManager(password.DefaultParams())
	require.NoError(t, err)

	hash, err := m.Hash(plaintext)
	require.NoError(t, err)

	return hash
}

func legacyBcryptHash(t *testing.T, plaintext string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.MinCost)
	require.NoError(t, err)

	return string(hash)
}

func expectTokenIssue(deps userServiceDeps, accessToken, refreshCookie string) {
	expiresAt := time.Now().Add(15 * time.Minute)
	deps.tokens.EXPECT().Generate(gomock.Any()).Return(accessToken, expiresAt, nil)
	deps.sessions.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(refreshCookie, nil)
}

func TestUserService_Register_Success(t *testing.T) {
	s, deps := newUserService(t)

	input := dto.RegisterInput{
		Email:     "New@Example.COM",
		Password:  "password123",
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	}

	var created *domain.User
	deps.users.EXPECT().GetByEmail(gomock.Any(), "new@example.com").Return(nil, nil)
	deps.users.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, user *domain.User) error {
			created = user
			return nil
		})
	deps.sessions.EXPECT().Create(gomock.Any(), gomock.Any(), dto.SessionMeta{
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}).Return("rt_new-token.new-secret", nil)
	deps.tokens.EXPECT().Generate(gomock.Any()).Return("access-token", time.Now().Add(15*time.Minute), nil)

	out, err := s.Register(context.Background(), input, domain.RoleClient)
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, domain.RoleClient, created.Role)
	assert.NotEmpty(t, created.ID)
	assert.True(t, strings.HasPrefix(created.PasswordHash, "$argon2id$"),
		"new accounts must get the current hash generation")

	assert.Equal(t, "access-token", out.AccessToken)
	assert.Equal(t, "rt_new-token.new-secret", out.RefreshCookie)
	assert.Equal(t, "new@example.com", out.User.Email)
}

func TestUserService_Register_EmailAlreadyInUse(t *testing.T) {
	s, deps := newUserService(t)

	deps.users.EXPECT().GetByEmail(gomock.Any(), "taken@example.com").
		Return(&domain.User{ID: "existing"}, nil)

	out, err := s.Register(context.Background(), dto.RegisterInput{
		Email:    "taken@example.com",
		Password: "password123",
	}, domain.RoleClient)

	assert.ErrorIs(t, err, autherror.ErrEmailAlreadyInUse)
	assert.Nil(t, out)
}

func TestUserService_Register_RejectsAdminRole(t *testing.T) {
	s, _ := newUserService(t)

	out, err := s.Register(context.Background(), dto.RegisterInput{
		Email:    "admin@example.com",
		Password: "password123",
	}, domain.RoleAdmin)

	assert.ErrorIs(t, err, autherror.ErrForbidden)
	assert.Nil(t, out)
}

func TestUserService_Register_InvalidInput(t *testing.T) {
	s, _ := newUserService(t)

	tests := []struct {
		name  string
		input dto.RegisterInput
	}{
		{"bad email", dto.RegisterInput{Email: "not-an-email", Password: "password123"}},
		{"short password", dto.RegisterInput{Email: "ok@example.com", Password: "short"}},
		{"empty", dto.RegisterInput{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Register(context.Background(), tt.input, domain.RoleClient)
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestUserService_Register_StorageError(t *testing.T) {
	s, deps := newUserService(t)

	storageErr := autherror.Storage("get user by email", errors.New("connection refused"))
	deps.users.EXPECT().GetByEmail(gomock.Any(), "new@example.com").Return(nil, storageErr)

	out, err := s.Register(context.Background(), dto.RegisterInput{
		Email:    "new@example.com",
		Password: "password123",
	}, domain.RoleClient)

	assert.ErrorIs(t, err, autherror.ErrStorageUnavailable)
	assert.Nil(t, out)
}

func TestUserService_Login_Success(t *testing.T) {
	s, deps := newUserService(t)

	user := &domain.User{
		ID:           "user-1",
		Email:        "test@example.com",
		PasswordHash: argon2Hash(t, "password123"),
		Role:         domain.RoleClient,
	}

	deps.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	deps.users.EXPECT().ResetLoginFailures(gomock.Any(), user.ID).Return(nil)
	expectTokenIssue(deps, "access-token", "rt_t.s")

	out, err := s.Login(context.Background(), dto.LoginInput{
		Email:    "Test@Example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-token", out.AccessToken)
	assert.Equal(t, "rt_t.s", out.RefreshCookie)
	assert.Equal(t, user.ID, out.User.ID)
}

func TestUserService_Login_LegacyHashUpgraded(t *testing.T) {
	s, deps := newUserService(t)

	user := &domain.User{
		ID:           "user-1",
		Email:        "test@example.com",
		PasswordHash: legacyBcryptHash(t, "password123"),
		Role:         domain.RoleClient,
	}

	var upgraded string
	deps.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	deps.users.EXPECT().UpdatePasswordHash(gomock.Any(), user.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, newHash string) error {
			upgraded = newHash
			return nil
		})
	deps.users.EXPECT().ResetLoginFailures(gomock.Any(), user.ID).Return(nil)
	expectTokenIssue(deps, "access-token", "rt_t.s")

	_, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "password123",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upgraded, "$argon2id$"),
		"legacy bcrypt hash must be replaced on successful login")
}

func TestUserService_Login_UnknownEmail(t *testing.T) {
	s, deps := newUserService(t)

	deps.users.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)

	out, err := s.Login(context.Background(), dto.LoginInput{
		Email:    "ghost@example.com",
		Password: "password123",
	})

	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	assert.Nil(t, out)
}

func TestUserService_Login_LockedAccount(t *testing.T) {
	s, deps := newUserService(t)

	lockUntil := time.Now().Add(5 * time.Minute)
	user := &domain.User{
		ID:           "user-1",
		Email:        "locked@example.com",
		PasswordHash: argon2Hash(t, "password123"),
		LockUntil:    &lockUntil,
	}

	deps.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)

	// Even the correct password is rejected while the lock holds.
	out, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "password123",
	})

	assert.ErrorIs(t, err, autherror.ErrTooManyLoginAttempts)
	assert.Nil(t, out)
}

func TestUserService_Login_ExpiredLockAdmitsUser(t *testing.T) {
	s, deps := newUserService(t)

	lockUntil := time.Now().Add(-time.Minute)
	user := &domain.User{
		ID:           "user-1",
		Email:        "unlocked@example.com",
		PasswordHash: argon2Hash(t, "password123"),
		LockUntil:    &lockUntil,
	}

	deps.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	deps.users.EXPECT().ResetLoginFailures(gomock.Any(), user.ID).Return(nil)
	expectTokenIssue(deps, "access-token", "rt_t.s")

	_, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "password123",
	})
	assert.NoError(t, err)
}

func TestUserService_Login_WrongPassword(t *testing.T) {
	s, deps := newUserService(t)

	user := &domain.User{
		ID:           "user-1",
		Email:        "test@example.com",
		PasswordHash: argon2Hash(t, "correct-password"),
	}

	deps.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	deps.users.EXPECT().RecordFailedLogin(gomock.Any(), user.ID, 5, 10*time.Minute).Return(nil)

	out, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "wrong-password",
	})

	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	assert.Nil(t, out)
}

func TestUserService_Login_UnknownHashTagFailsClosed(t *testing.T) {
	s, deps := newUserService(t)

	user := &domain.User{
		ID:           "user-1",
		Email:        "test@example.com",
		PasswordHash: "$scrypt$n=16384$c2FsdA$aGFzaA",
	}

	deps.users.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	deps.users.EXPECT().RecordFailedLogin(gomock.Any(), user.ID, 5, 10*time.Minute).Return(nil)

	out, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "password123",
	})

	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	assert.Nil(t, out)
}

func TestUserService_Refresh_Success(t *testing.T) {
	s, deps := newUserService(t)

	user := &domain.User{ID: "user-1", Email: "test@example.com", Role: domain.RoleClient}
	input := dto.RefreshInput{
		CookieValue: "rt_old-token.old-secret",
		IPAddress:   "203.0.113.7",
		UserAgent:   "test-agent",
	}

	deps.sessions.EXPECT().Rotate(gomock.Any(), input.CookieValue, input.Meta()).
		Return("rt_new-token.new-secret", user.ID, nil)
	deps.users.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)
	deps.tokens.EXPECT().Generate(user).Return("new-access", time.Now().Add(15*time.Minute), nil)

	out, err := s.Refresh(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "new-access", out.AccessToken)
	assert.Equal(t, "rt_new-token.new-secret", out.RefreshCookie)
	assert.Equal(t, user.ID, out.User.ID)
}

func TestUserService_Refresh_ReuseDetectedPassesThrough(t *testing.T) {
	s, deps := newUserService(t)

	deps.sessions.EXPECT().Rotate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", "", autherror.ErrReuseDetected)

	out, err := s.Refresh(context.Background(), dto.RefreshInput{CookieValue: "rt_t.s"})

	assert.ErrorIs(t, err, autherror.ErrReuseDetected)
	assert.Nil(t, out)
}

func TestUserService_Refresh_UserGone(t *testing.T) {
	s, deps := newUserService(t)

	deps.sessions.EXPECT().Rotate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("rt_new.s", "user-1", nil)
	deps.users.EXPECT().GetByID(gomock.Any(), "user-1").Return(nil, nil)

	out, err := s.Refresh(context.Background(), dto.RefreshInput{CookieValue: "rt_old.s"})

	assert.ErrorIs(t, err, autherror.ErrInvalidCredentials)
	assert.Nil(t, out)
}

func TestUserService_Logout(t *testing.T) {
	t.Run("empty cookie is a no-op", func(t *testing.T) {
		s, _ := newUserService(t)
		assert.NoError(t, s.Logout(context.Background(), ""))
	})

	t.Run("present cookie revokes the session", func(t *testing.T) {
		s, deps := newUserService(t)
		deps.sessions.EXPECT().Revoke(gomock.Any(), "rt_t.s").Return(nil)
		assert.NoError(t, s.Logout(context.Background(), "rt_t.s"))
	})
}

func TestUserService_LogoutAll(t *testing.T) {
	s, deps := newUserService(t)

	deps.sessions.EXPECT().RevokeAll(gomock.Any(), "user-1").Return(nil)
	assert.NoError(t, s.LogoutAll(context.Background(), "user-1"))
}

func TestUserService_ListSessions(t *testing.T) {
	s, deps := newUserService(t)

	want := []dto.SessionOutput{{TokenID: "token-1"}}
	deps.sessions.EXPECT().List(gomock.Any(), "user-1").Return(want, nil)

	got, err := s.ListSessions(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUserService_RevokeSession(t *testing.T) {
	s, deps := newUserService(t)

	deps.sessions.EXPECT().RevokeByTokenID(gomock.Any(), "user-1", "token-1").Return(nil)
	assert.NoError(t, s.RevokeSession(context.Background(), "user-1", "token-1"))
}
