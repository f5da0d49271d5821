package dto

import (
	"time"
)

// SessionOutput lists an active refresh session. Secret hashes and
// fingerprint hashes are deliberately absent.
type SessionOutput struct {
	TokenID    string     `json:"token_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}
