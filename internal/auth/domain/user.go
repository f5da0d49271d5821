package domain

import "time"

type Role string

const (
	RoleClient Role = "client"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles. The set is closed;
// admin accounts are provisioned out of band, never self-registered.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleSeller, RoleAdmin:
		return true
	}

	return false
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	Phone        string

	// Brute-force protection. Mutated only through
	// UserRepository.RecordFailedLogin / ResetLoginFailures.
	FailedLoginCount  int
	LastFailedLoginAt *time.Time
	LockUntil         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked reports whether the account rejects logins at the given instant,
// regardless of password correctness.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}
