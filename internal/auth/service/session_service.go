package service

//go:generate mockgen -destination=../../mocks/mock_session_manager.go -package=mocks github.com/ebuchanan1123/autopiece/internal/auth/service SessionManager

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ebuchanan1123/autopiece/config"
	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
	"github.com/ebuchanan1123/autopiece/internal/auth/dto"
	autherror "github.com/ebuchanan1123/autopiece/internal/errors"
	"github.com/ebuchanan1123/autopiece/pkg/constant"
)

type SessionManager interface {
	Create(ctx context.Context, userID string, meta dto.SessionMeta) (string, error)
	Rotate(ctx context.Context, cookieValue string, meta dto.SessionMeta) (string, string, error)
	Revoke(ctx context.Context, cookieValue string) error
	RevokeAll(ctx context.Context, userID string) error
	RevokeByTokenID(ctx context.Context, userID, tokenID string) error
	List(ctx context.Context, userID string) ([]dto.SessionOutput, error)
}

// SessionService owns the refresh-session lifecycle: creation, rotation,
// revocation and reuse detection. The cookie payload is
// rt_<tokenId>.<secret>; the tokenId is the public lookup key and the
// secret is bcrypt-hashed before storage, mirroring how passwords are
// handled. Sessions are never deleted, so a revoked-and-rotated session
// presented again is recognizable as token reuse.
type SessionService struct {
	sessions          domain.SessionRepository
	log               *zap.Logger
	refreshTTL        time.Duration
	fingerprintSecret []byte
	fingerprintStrict bool
}

func NewSessionService(sessions domain.SessionRepository, cfg *config.Config, log *zap.Logger) *SessionService {
	return &SessionService{
		sessions:          sessions,
		log:               log,
		refreshTTL:        cfg.Session.RefreshTokenTTL,
		fingerprintSecret: []byte(cfg.Session.FingerprintSecret),
		fingerprintStrict: cfg.Session.FingerprintStrict,
	}
}

// BuildCookieValue composes the refresh cookie payload from its parts.
func BuildCookieValue(tokenID, secret string) string {
	return constant.RefreshCookiePrefix + tokenID + "." + secret
}

// ParseCookieValue splits a refresh cookie payload into tokenId and secret.
// The bool result is false for anything malformed.
func ParseCookieValue(value string) (string, string, bool) {
	if !strings.HasPrefix(value, constant.RefreshCookiePrefix) {
		return "", "", false
	}

	rest := value[len(constant.RefreshCookiePrefix):]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return "", "", false
	}

	return rest[:dot], rest[dot+1:], true
}

// Create issues a fresh session for the user and returns the cookie value.
// The raw secret exists only in the returned value; storage sees its hash.
func (s *SessionService) Create(ctx context.Context, userID string, meta dto.SessionMeta) (string, error) {
	tokenID := uuid.NewString()

	secret, err := newSessionSecret()
	if err != nil {
		return "", err
	}

	session, err := s.buildSession(tokenID, userID, secret, meta)
	if err != nil {
		return "", err
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return "", err
	}

	return BuildCookieValue(tokenID, secret), nil
}

// Rotate exchanges a valid refresh cookie for a new one, revoking the old
// session. Reuse of an already-rotated token, or a fingerprint mismatch in
// strict mode, revokes every active session for the account.
func (s *SessionService) Rotate(ctx context.Context, cookieValue string, meta dto.SessionMeta) (string, string, error) {
	tokenID, secret, ok := ParseCookieValue(cookieValue)
	if !ok {
		return "", "", autherror.ErrInvalidCredentials
	}

	session, err := s.sessions.GetByTokenID(ctx, tokenID)
	if err != nil {
		return "", "", err
	}
	if session == nil {
		// Unknown tokenId is indistinguishable from malformed input.
		return "", "", autherror.ErrInvalidCredentials
	}

	if session.Revoked() {
		if session.ReplacedByTokenID != nil {
			// An already-rotated token is being replayed. Assume the
			// account's sessions are compromised and revoke them all.
			return "", "", s.handleReuse(ctx, session, "rotated token replayed")
		}

		return "", "", autherror.ErrInvalidCredentials
	}

	if session.Expired(time.Now()) {
		return "", "", autherror.ErrRefreshTokenExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(session.SecretHash), []byte(secret)) != nil {
		return "", "", autherror.ErrInvalidCredentials
	}

	if s.fingerprintStrict {
		if mismatch, reason := s.fingerprintMismatch(session, meta); mismatch {
			// A valid secret arriving from an unrecognized client context
			// is itself a compromise indicator.
			return "", "", s.handleReuse(ctx, session, reason)
		}
	}

	newTokenID := uuid.NewString()

	newSecret, err := newSessionSecret()
	if err != nil {
		return "", "", err
	}

	// The conditional revoke decides the winner when two rotations race on
	// the same token: exactly one sees rotated=true.
	rotated, err := s.sessions.MarkRotated(ctx, session.TokenID, newTokenID)
	if err != nil {
		return "", "", err
	}
	if !rotated {
		return "", "", s.handleReuse(ctx, session, "concurrent rotation lost")
	}

	newSession, err := s.buildSession(newTokenID, session.UserID, newSecret, meta)
	if err != nil {
		return "", "", err
	}

	if err := s.sessions.Insert(ctx, newSession); err != nil {
		return "", "", err
	}

	return BuildCookieValue(newTokenID, newSecret), session.UserID, nil
}

// Revoke invalidates the session named by the cookie. Malformed or unknown
// cookies are a no-op: logout is idempotent.
func (s *SessionService) Revoke(ctx context.Context, cookieValue string) error {
	tokenID, _, ok := ParseCookieValue(cookieValue)
	if !ok {
		return nil
	}

	return s.sessions.Revoke(ctx, tokenID)
}

func (s *SessionService) RevokeAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

func (s *SessionService) RevokeByTokenID(ctx context.Context, userID, tokenID string) error {
	return s.sessions.RevokeForUser(ctx, userID, tokenID)
}

// List returns the account's active sessions without secret hashes or
// fingerprints.
func (s *SessionService) List(ctx context.Context, userID string) ([]dto.SessionOutput, error) {
	sessions, err := s.sessions.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SessionOutput, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, dto.SessionOutput{
			TokenID:    session.TokenID,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
			ExpiresAt:  session.ExpiresAt,
		})
	}

	return out, nil
}

func (s *SessionService) handleReuse(ctx context.Context, session *domain.RefreshSession, reason string) error {
	s.log.Warn("refresh token reuse detected, revoking all sessions",
		zap.String("user_id", session.UserID),
		zap.String("token_id", session.TokenID),
		zap.String("reason", reason),
	)

	if err := s.sessions.RevokeAllForUser(ctx, session.UserID); err != nil {
		return err
	}

	return autherror.ErrReuseDetected
}

func (s *SessionService) buildSession(tokenID, userID, secret string, meta dto.SessionMeta) (*domain.RefreshSession, error) {
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), constant.SessionSecretHashCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.RefreshSession{
		ID:         uuid.NewString(),
		TokenID:    tokenID,
		UserID:     userID,
		SecretHash: string(secretHash),
		ExpiresAt:  now.Add(s.refreshTTL),
		CreatedAt:  now,
		LastUsedAt: &now,
	}

	if ip := normalizeIP(meta.IPAddress); ip != "" {
		h := s.fingerprint(ip)
		session.IPHash = &h
	}
	if ua := normalizeUserAgent(meta.UserAgent); ua != "" {
		h := s.fingerprint(ua)
		session.UserAgentHash = &h
	}

	return session, nil
}

// fingerprintMismatch compares stored fingerprints against the current
// request context. Only stored-and-present values are compared; a session
// created without metadata never mismatches.
func (s *SessionService) fingerprintMismatch(session *domain.RefreshSession, meta dto.SessionMeta) (bool, string) {
	if ip := normalizeIP(meta.IPAddress); ip != "" && session.IPHash != nil {
		if s.fingerprint(ip) != *session.IPHash {
			return true, "ip fingerprint mismatch"
		}
	}

	if ua := normalizeUserAgent(meta.UserAgent); ua != "" && session.UserAgentHash != nil {
		if s.fingerprint(ua) != *session.UserAgentHash {
			return true, "user agent fingerprint mismatch"
		}
	}

	return false, ""
}

func (s *SessionService) fingerprint(value string) string {
	mac := hmac.New(sha256.New, s.fingerprintSecret)
	mac.Write([]byte(value))

	return hex.EncodeToString(mac.Sum(nil))
}

func newSessionSecret() (string, error) {
	buf := make([]byte, constant.SessionSecretBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func normalizeIP(ip string) string {
	return strings.TrimSpace(ip)
}

func normalizeUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if len(ua) > constant.MaxUserAgentLength {
		ua = ua[:constant.MaxUserAgentLength]
	}

	return ua
}
