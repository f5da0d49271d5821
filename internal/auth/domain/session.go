package domain

import "time"

// RefreshSession is one row per issued refresh token. TokenID is the public
// lookup key; the authentication factor is a random secret stored only as
// SecretHash. Rows are never deleted, only revoked, so reuse of an
// already-rotated token can be recognized later.
type RefreshSession struct {
	ID         string
	TokenID    string
	UserID     string
	SecretHash string

	ExpiresAt time.Time
	RevokedAt *time.Time

	// ReplacedByTokenID links a rotated session to its successor.
	// Set implies RevokedAt is set.
	ReplacedByTokenID *string

	// Keyed-hash fingerprints of the client context, nil when unknown.
	IPHash        *string
	UserAgentHash *string

	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Revoked reports whether the session has been invalidated.
func (s *RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *RefreshSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
