package dto

// SessionMeta carries request context used for session fingerprinting.
// Both fields may be empty when the transport cannot supply them.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

type RefreshInput struct {
	CookieValue string `json:"-"`
	IPAddress   string `json:"-"`
	UserAgent   string `json:"-"`
}

func (i RefreshInput) Meta() SessionMeta {
	return SessionMeta{IPAddress: i.IPAddress, UserAgent: i.UserAgent}
}
