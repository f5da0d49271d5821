package dto

import (
	"time"
)

// UserOutput is the safe projection of an account. Password hash and
// lockout state never leave the service layer.
type UserOutput struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthOutput is the result of register, login and refresh. The refresh
// cookie value is transported as an httpOnly cookie, never in the body.
type AuthOutput struct {
	User          UserOutput `json:"user"`
	AccessToken   string     `json:"access_token"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RefreshCookie string     `json:"-"`
}
