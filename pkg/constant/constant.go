package constant

const (
	// RefreshCookieName is the cookie the refresh session travels in.
	RefreshCookieName = "refresh_token"

	// RefreshCookiePrefix marks the opaque cookie payload: rt_<tokenId>.<secret>.
	RefreshCookiePrefix = "rt_"

	// RefreshCookiePath scopes the cookie to the auth endpoints only.
	RefreshCookiePath = "/api/v1/auth"

	// ClaimsLocalKey is the fiber locals key the guard stores verified claims under.
	ClaimsLocalKey = "auth_claims"

	// SessionSecretBytes is the entropy of a refresh-session secret before encoding.
	SessionSecretBytes = 32

	// SessionSecretHashCost is the bcrypt cost for refresh-session secrets.
	// These are 43-char random strings, not user passwords, so cost 10 is plenty.
	SessionSecretHashCost = 10

	// MaxUserAgentLength caps the user agent before fingerprinting.
	MaxUserAgentLength = 512

	// MinSecretLength is the minimum length for server-side secrets
	// (JWT signing key, fingerprint HMAC key).
	MinSecretLength = 32
)
