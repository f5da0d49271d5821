// Package password hashes and verifies user passwords across two hash
// generations: argon2id (current) and bcrypt (legacy). Verification
// dispatches on the tag embedded in the stored hash; a successful verify
// against anything weaker than the configured policy reports a replacement
// hash the caller must persist.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 64 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Params is the argon2id cost policy. Hashes produced with weaker
// parameters still verify but get rehashed on the next successful login.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type Manager struct {
	params Params
}

// Result reports the outcome of a Verify call. When NewHash is non-empty
// the caller must persist it before treating the login as complete.
type Result struct {
	Valid   bool
	NewHash string
}

func NewManager(params Params) (*Manager, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	return &Manager{params: params}, nil
}

// Hash produces a PHC-encoded argon2id hash with the current policy.
func (m *Manager) Hash(password string) (string, error) {
	salt := make([]byte, m.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		m.params.Time,
		m.params.Memory,
		m.params.Parallelism,
		m.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		m.params.Memory,
		m.params.Time,
		m.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks password against a stored hash of either generation.
//
// A bcrypt-tagged hash that verifies is immediately recomputed with the
// current argon2id policy. An argon2id hash that verifies with parameters
// weaker than the policy is likewise recomputed. Unrecognized tags fail
// closed: Valid=false, no error, no rehash attempt.
func (m *Manager) Verify(stored, password string) (Result, error) {
	switch {
	case isBcryptHash(stored):
		if bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) != nil {
			return Result{}, nil
		}

		newHash, err := m.Hash(password)
		if err != nil {
			return Result{}, err
		}

		return Result{Valid: true, NewHash: newHash}, nil

	case isArgon2Hash(stored):
		parsed, err := parsePHC(stored)
		if err != nil {
			// Corrupt or truncated argon2 hash: treat as invalid.
			return Result{}, nil
		}

		computed := argon2.IDKey(
			[]byte(password),
			parsed.salt,
			parsed.time,
			parsed.memory,
			parsed.parallelism,
			uint32(len(parsed.hash)),
		)
		if subtle.ConstantTimeCompare(computed, parsed.hash) != 1 {
			return Result{}, nil
		}

		if m.needsRehash(parsed) {
			newHash, err := m.Hash(password)
			if err != nil {
				return Result{}, err
			}

			return Result{Valid: true, NewHash: newHash}, nil
		}

		return Result{Valid: true}, nil

	default:
		// Unknown tag: never attempt to interpret the format.
		return Result{}, nil
	}
}

func (m *Manager) needsRehash(parsed *parsedPHC) bool {
	if parsed.memory < m.params.Memory {
		return true
	}
	if parsed.time < m.params.Time {
		return true
	}
	if parsed.parallelism < m.params.Parallelism {
		return true
	}
	if uint32(len(parsed.hash)) != m.params.KeyLength {
		return true
	}

	return false
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func isArgon2Hash(hash string) bool {
	return strings.HasPrefix(hash, "$"+algorithmID+"$")
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseCostParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, errors.New("invalid salt encoding")
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return nil, errors.New("invalid hash encoding")
	}

	params.salt = salt
	params.hash = hash

	return params, nil
}

func parseCostParams(part string) (*parsedPHC, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var parsed parsedPHC
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, errors.New("invalid memory parameter")
			}
			parsed.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, errors.New("invalid time parameter")
			}
			parsed.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v == 0 {
				return nil, errors.New("invalid parallelism parameter")
			}
			parsed.parallelism = uint8(v)
		default:
			return nil, errors.New("unsupported parameter")
		}
	}

	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, errors.New("missing parameters")
	}

	return &parsed, nil
}

func validateParams(params Params) error {
	if params.Memory < minMemoryKB {
		return errors.New("password memory must be >= 65536 KB")
	}
	if params.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if params.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if params.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if params.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
