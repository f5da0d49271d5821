package domain

//go:generate mockgen -destination=../../mocks/mock_user_repository.go -package=mocks github.com/ebuchanan1123/autopiece/internal/auth/domain UserRepository
//go:generate mockgen -destination=../../mocks/mock_session_repository.go -package=mocks github.com/ebuchanan1123/autopiece/internal/auth/domain SessionRepository

import (
	"context"
	"time"
)

type UserRepository interface {
	// GetByEmail returns (nil, nil) when no account matches.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByID returns (nil, nil) when no account matches.
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error

	// RecordFailedLogin increments the failure counter and, once it reaches
	// maxFailures, sets the lock timestamp. Both steps are atomic at the
	// store level so concurrent attempts never under-count.
	RecordFailedLogin(ctx context.Context, userID string, maxFailures int, lockFor time.Duration) error
	ResetLoginFailures(ctx context.Context, userID string) error
}

type SessionRepository interface {
	Insert(ctx context.Context, session *RefreshSession) error
	// GetByTokenID returns (nil, nil) when no session matches.
	GetByTokenID(ctx context.Context, tokenID string) (*RefreshSession, error)

	// MarkRotated revokes the session and links its successor in a single
	// conditional update. Returns false when the session was already revoked,
	// which is how a lost rotation race is detected.
	MarkRotated(ctx context.Context, tokenID, replacedByTokenID string) (bool, error)

	Revoke(ctx context.Context, tokenID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	RevokeForUser(ctx context.Context, userID, tokenID string) error
	ListActiveForUser(ctx context.Context, userID string) ([]RefreshSession, error)
}
