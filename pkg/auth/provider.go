// Package auth provides bearer token sources for the marketplace APIs.
//
// Every provider implements Provider. Providers that cache tokens also
// implement Invalidator so the HTTP client can drop a token the API rejected
// and fetch a fresh one.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/matexport/pkg/logging"
	"github.com/Sternrassler/matexport/pkg/tokencache"
	"github.com/rs/zerolog"
)

var (
	// ErrNoCredentials is returned when a provider is not configured with
	// the credentials it needs.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrAuthenticationFailed is returned when the identity provider rejects
	// the credentials or returns no usable token.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// DefaultTokenLifetime is assumed for tokens that carry no expiry.
const DefaultTokenLifetime = time.Hour

// Provider supplies bearer tokens.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Invalidator is implemented by providers that cache tokens.
type Invalidator interface {
	// Invalidate discards the current access token. The next Token call
	// acquires a new one.
	Invalidate(ctx context.Context) error
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f ProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns a provider that always returns token, e.g. a bearer token
// copied from the browser session.
func Static(token string) Provider {
	return ProviderFunc(func(context.Context) (string, error) {
		if token == "" {
			return "", ErrNoCredentials
		}
		return token, nil
	})
}

// entryCache keeps the current token in memory and mirrors it to an
// optional persistent store. Callers serialize access.
type entryCache struct {
	store  tokencache.Store
	key    tokencache.Key
	entry  *tokencache.Entry
	logger zerolog.Logger
}

func newEntryCache(store tokencache.Store, key tokencache.Key) *entryCache {
	return &entryCache{
		store:  store,
		key:    key,
		logger: logging.NewLogger("auth").With().Str("source", key.Source).Logger(),
	}
}

// load returns the in-memory entry, falling back to the store. The entry may
// be expired but refreshable; nil means nothing is cached.
func (c *entryCache) load(ctx context.Context) *tokencache.Entry {
	if c.entry != nil {
		return c.entry
	}
	if c.store == nil {
		return nil
	}

	entry, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, tokencache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Msg("Token cache read failed")
		}
		return nil
	}

	c.logger.Debug().Time("expires", entry.Expires).Msg("Loaded token from cache")
	c.entry = entry
	return entry
}

func (c *entryCache) save(ctx context.Context, entry *tokencache.Entry) {
	c.entry = entry
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, c.key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Token cache write failed")
	}
}

// expire drops the access token but keeps a refresh token if there is one.
func (c *entryCache) expire(ctx context.Context) error {
	entry := c.load(ctx)
	if entry == nil {
		return nil
	}

	if !entry.Refreshable() {
		c.entry = nil
		if c.store == nil {
			return nil
		}
		return c.store.Delete(ctx, c.key)
	}

	expired := *entry
	expired.AccessToken = ""
	expired.Expires = time.Time{}
	c.save(ctx, &expired)
	return nil
}
