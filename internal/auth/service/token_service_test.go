package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
)

const testSigningSecret = "test-signing-secret-at-least-32-chars-long"

func testUser() *domain.User {
	return &domain.User{
		ID:    "user-123",
		Email: "test@example.com",
		Role:  domain.RoleClient,
	}
}

func TestTokenService_GenerateAndVerify(t *testing.T) {
	ts := NewTokenService(testSigningSecret, 15*time.Minute)
	user := testUser()

	token, expiresAt, err := ts.Generate(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := ts.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, string(domain.RoleClient), claims.Role)
	assert.NotEmpty(t, claims.ID, "jti must be set")
}

func TestTokenService_Generate_UniqueJTI(t *testing.T) {
	ts := NewTokenService(testSigningSecret, 15*time.Minute)
	user := testUser()

	first, _, err := ts.Generate(user)
	require.NoError(t, err)
	second, _, err := ts.Generate(user)
	require.NoError(t, err)

	firstClaims, err := ts.VerifyAccessToken(first)
	require.NoError(t, err)
	secondClaims, err := ts.VerifyAccessToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestTokenService_Verify_WrongSecret(t *testing.T) {
	ts := NewTokenService(testSigningSecret, 15*time.Minute)

	token, _, err := ts.Generate(testUser())
	require.NoError(t, err)

	other := NewTokenService("another-secret-that-is-also-32-chars!!", 15*time.Minute)
	_, err = other.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestTokenService_Verify_Expired(t *testing.T) {
	ts := NewTokenService(testSigningSecret, -1*time.Minute)

	token, _, err := ts.Generate(testUser())
	require.NoError(t, err)

	_, err = ts.VerifyAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenService_Verify_Garbage(t *testing.T) {
	ts := NewTokenService(testSigningSecret, 15*time.Minute)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := ts.VerifyAccessToken(token)
		assert.Error(t, err, token)
	}
}

func TestTokenService_Verify_RejectsUnsignedToken(t *testing.T) {
	ts := NewTokenService(testSigningSecret, 15*time.Minute)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, JWTCustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestTokenService_AccessTokenExpiry(t *testing.T) {
	ts := NewTokenService(testSigningSecret, 42*time.Minute)
	assert.Equal(t, 42*time.Minute, ts.AccessTokenExpiry())
}
