package errors

import (
	"errors"
	"fmt"
)

var (
	ErrTooManyLoginAttempts = errors.New("too many failed login attempts")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailAlreadyInUse    = errors.New("email already in use")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrReuseDetected        = errors.New("refresh token reuse detected")
	ErrForbidden            = errors.New("insufficient permissions")

	// ErrStorageUnavailable classifies persistence failures. Safe for the
	// caller to retry with backoff; never reported as a credential problem.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError wraps a persistence-layer failure with the operation that hit it.
// errors.Is(err, ErrStorageUnavailable) matches any StorageError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// Storage wraps err as a StorageError. Returns nil if err is nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}

	return &StorageError{Op: op, Err: err}
}
