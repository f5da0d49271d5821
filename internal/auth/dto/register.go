package dto

import (
	"errors"
	"net/mail"
	"strings"
)

const minPasswordLength = 8

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Validate checks the input before any storage round trip. Email format is
// only sanity-checked here; uniqueness is the service's concern.
func (i RegisterInput) Validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(i.Email)); err != nil {
		return errors.New("invalid email address")
	}
	if len(i.Password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}

	return nil
}
