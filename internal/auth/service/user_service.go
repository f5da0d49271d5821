package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ebuchanan1123/autopiece/config"
	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
	"github.com/ebuchanan1123/autopiece/internal/auth/dto"
	"github.com/ebuchanan1123/autopiece/internal/auth/password"
	autherror "github.com/ebuchanan1123/autopiece/internal/errors"
)

// UserService composes the credential manager, lockout tracking, token
// issuer and session store into the register/login/refresh/logout flows.
// Every rejection surfaces as a generic error so callers cannot probe
// account existence or lock state beyond the single locked signal.
type UserService struct {
	users     domain.UserRepository
	tokens    TokenGenerator
	sessions  SessionManager
	passwords *password.Manager
	log       *zap.Logger

	maxLoginFailures int
	lockDuration     time.Duration
}

func NewUserService(
	users domain.UserRepository,
	tokens TokenGenerator,
	sessions SessionManager,
	passwords *password.Manager,
	cfg *config.Config,
	log *zap.Logger,
) *UserService {
	return &UserService{
		users:            users,
		tokens:           tokens,
		sessions:         sessions,
		passwords:        passwords,
		log:              log,
		maxLoginFailures: cfg.Auth.MaxLoginFailures,
		lockDuration:     cfg.Auth.LockDuration,
	}
}

// Register creates an account with the given role and opens its first
// session. Admin accounts are provisioned out of band; handlers only ever
// pass client or seller here.
func (s *UserService) Register(ctx context.Context, input dto.RegisterInput, role domain.Role) (*dto.AuthOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if role != domain.RoleClient && role != domain.RoleSeller {
		return nil, autherror.ErrForbidden
	}

	email := normalizeEmail(input.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	passwordHash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Phone:        strings.TrimSpace(input.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	meta := dto.SessionMeta{IPAddress: input.IPAddress, UserAgent: input.UserAgent}

	return s.issueTokens(ctx, user, meta)
}

// Login runs the gate sequence: lock check, credential verify (with
// transparent hash upgrade), failure accounting, then token issuance.
func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthOutput, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a hash so unknown emails cost the same as wrong passwords.
		_, _ = s.passwords.Hash(input.Password)

		return nil, autherror.ErrInvalidCredentials
	}

	if user.IsLocked(time.Now()) {
		return nil, autherror.ErrTooManyLoginAttempts
	}

	res, err := s.passwords.Verify(user.PasswordHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		if err := s.users.RecordFailedLogin(ctx, user.ID, s.maxLoginFailures, s.lockDuration); err != nil {
			return nil, err
		}

		return nil, autherror.ErrInvalidCredentials
	}

	// The upgraded hash must land before the login completes; a failure
	// here is a storage problem, not a credential one.
	if res.NewHash != "" {
		if err := s.users.UpdatePasswordHash(ctx, user.ID, res.NewHash); err != nil {
			return nil, err
		}
		user.PasswordHash = res.NewHash

		s.log.Info("password hash upgraded", zap.String("user_id", user.ID))
	}

	if err := s.users.ResetLoginFailures(ctx, user.ID); err != nil {
		return nil, err
	}

	meta := dto.SessionMeta{IPAddress: input.IPAddress, UserAgent: input.UserAgent}

	return s.issueTokens(ctx, user, meta)
}

// Refresh delegates to the session store's rotation and translates its
// outcome; no additional policy lives here.
func (s *UserService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.AuthOutput, error) {
	newCookie, userID, err := s.sessions.Rotate(ctx, input.CookieValue, input.Meta())
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrInvalidCredentials
	}

	accessToken, expiresAt, err := s.tokens.Generate(user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthOutput{
		User:          toUserOutput(user),
		AccessToken:   accessToken,
		ExpiresAt:     expiresAt,
		RefreshCookie: newCookie,
	}, nil
}

// Logout revokes the presented session. Missing or malformed cookies are a
// no-op: logout never fails on a client that is already logged out.
func (s *UserService) Logout(ctx context.Context, cookieValue string) error {
	if cookieValue == "" {
		return nil
	}

	return s.sessions.Revoke(ctx, cookieValue)
}

// LogoutAll revokes every active session for the account.
func (s *UserService) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAll(ctx, userID)
}

func (s *UserService) ListSessions(ctx context.Context, userID string) ([]dto.SessionOutput, error) {
	return s.sessions.List(ctx, userID)
}

func (s *UserService) RevokeSession(ctx context.Context, userID, tokenID string) error {
	return s.sessions.RevokeByTokenID(ctx, userID, tokenID)
}

func (s *UserService) issueTokens(ctx context.Context, user *domain.User, meta dto.SessionMeta) (*dto.AuthOutput, error) {
	accessToken, expiresAt, err := s.tokens.Generate(user)
	if err != nil {
		return nil, err
	}

	refreshCookie, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	return &dto.AuthOutput{
		User:          toUserOutput(user),
		AccessToken:   accessToken,
		ExpiresAt:     expiresAt,
		RefreshCookie: refreshCookie,
	}, nil
}

func toUserOutput(user *domain.User) dto.UserOutput {
	return dto.UserOutput{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
