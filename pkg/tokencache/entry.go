package tokencache

import (
	"time"
)

const (
	// ExpirySkew is subtracted from the access token expiry so that a token
	// is not handed out seconds before the API rejects it.
	ExpirySkew = 30 * time.Second

	// RefreshTokenLifetime is how long an entry carrying a refresh token is
	// retained after it was cached. Entra ID refresh tokens are valid for
	// 90 days of inactivity.
	RefreshTokenLifetime = 90 * 24 * time.Hour
)

// Entry represents a cached token.
type Entry struct {
	// AccessToken is the bearer token sent in the Authorization header.
	AccessToken string `json:"access_token"`

	// TokenType is usually "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken allows silent renewal (OAuth flows only).
	RefreshToken string `json:"refresh_token,omitempty"`

	// Expires is when the access token stops being accepted.
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this token.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the access token is missing or expires within
// ExpirySkew.
func (e *Entry) IsExpired() bool {
	if e.AccessToken == "" {
		return true
	}
	return time.Now().Add(ExpirySkew).After(e.Expires)
}

// Refreshable reports whether the entry can be renewed without user
// interaction.
func (e *Entry) Refreshable() bool {
	return e.RefreshToken != ""
}

// TTL returns the time until the access token expires.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Retention returns how long a store should keep the entry. Entries with a
// refresh token outlive their access token.
func (e *Entry) Retention() time.Duration {
	ttl := e.TTL()
	if !e.Refreshable() {
		return ttl
	}

	refresh := time.Until(e.CachedAt.Add(RefreshTokenLifetime))
	if refresh > ttl {
		return refresh
	}
	return ttl
}

// usable reports whether a store should return the entry at all.
func (e *Entry) usable() bool {
	return !e.IsExpired() || e.Refreshable()
}
