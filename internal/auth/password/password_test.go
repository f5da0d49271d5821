package password_test

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/ebuchanan1123/autopiece/internal/auth/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

func newManager(t *testing.T) *password.Manager {
	t.Helper()

	m, err := password.NewManager(password.DefaultParams())
	require.NoError(t, err)

	return m
}

// weakArgon2Hash builds a valid argon2id hash with costs below the default
// policy, simulating a hash minted before the parameters were raised.
func weakArgon2Hash(password string) string {
	salt := []byte("0123456789abcdef")
	var (
		timeCost    uint32 = 1
		memory      uint32 = 32 * 1024
		parallelism uint8  = 1
		keyLength   uint32 = 32
	)

	hash := argon2.IDKey([]byte(password), salt, timeCost, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		timeCost,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func TestManager_HashVerifyRoundTrip(t *testing.T) {
	m := newManager(t)

	hash, err := m.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	res, err := m.Verify(hash, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.NewHash, "fresh hash should not need a rehash")
}

func TestManager_Verify_WrongPassword(t *testing.T) {
	m := newManager(t)

	hash, err := m.Hash("password123")
	require.NoError(t, err)

	res, err := m.Verify(hash, "password124")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Empty(t, res.NewHash)
}

func TestManager_Verify_LegacyBcryptUpgrade(t *testing.T) {
	m := newManager(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	res, err := m.Verify(string(legacy), "password123")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotEmpty(t, res.NewHash, "bcrypt hash must be upgraded on success")
	assert.True(t, strings.HasPrefix(res.NewHash, "$argon2id$"))

	// A second verify against the upgraded hash reports no further rehash.
	res2, err := m.Verify(res.NewHash, "password123")
	require.NoError(t, err)
	assert.True(t, res2.Valid)
	assert.Empty(t, res2.NewHash)
}

func TestManager_Verify_LegacyBcryptWrongPassword(t *testing.T) {
	m := newManager(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	res, err := m.Verify(string(legacy), "not-the-password")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Empty(t, res.NewHash, "no rehash may be attempted on a failed legacy verify")
}

func TestManager_Verify_WeakParamsTriggerRehash(t *testing.T) {
	m := newManager(t)

	weak := weakArgon2Hash("password123")

	res, err := m.Verify(weak, "password123")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotEmpty(t, res.NewHash)
	assert.Contains(t, res.NewHash, "m=65536")
}

func TestManager_Verify_UnknownTagFailsClosed(t *testing.T) {
	m := newManager(t)

	for _, stored := range []string{
		"",
		"plaintextpassword",
		"$md5$abcdef",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"{SSHA}bm9wZQ==",
	} {
		res, err := m.Verify(stored, "password123")
		assert.NoError(t, err, stored)
		assert.False(t, res.Valid, stored)
		assert.Empty(t, res.NewHash, stored)
	}
}

func TestManager_Verify_CorruptArgon2FailsClosed(t *testing.T) {
	m := newManager(t)

	for _, stored := range []string{
		"$argon2id$v=19$m=65536,t=3$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	} {
		res, err := m.Verify(stored, "password123")
		assert.NoError(t, err, stored)
		assert.False(t, res.Valid, stored)
	}
}

func TestNewManager_RejectsWeakPolicy(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*password.Params)
	}{
		{"memory below 64MiB", func(p *password.Params) { p.Memory = 32 * 1024 }},
		{"zero time", func(p *password.Params) { p.Time = 0 }},
		{"zero parallelism", func(p *password.Params) { p.Parallelism = 0 }},
		{"short salt", func(p *password.Params) { p.SaltLength = 8 }},
		{"short key", func(p *password.Params) { p.KeyLength = 8 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := password.DefaultParams()
			tc.mutate(&params)

			_, err := password.NewManager(params)
			assert.Error(t, err)
		})
	}
}
