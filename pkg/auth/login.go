package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/matexport/pkg/tokencache"
	"github.com/tidwall/gjson"
)

// DefaultDuspotLoginURL is the JWT login endpoint of the Duspot API.
const DefaultDuspotLoginURL = "https://api.duspot.nl/api/login_check"

// PasswordLoginConfig configures a username/password JWT login.
type PasswordLoginConfig struct {
	// Source labels the token in the cache (e.g. "duspot").
	Source string

	// LoginURL receives a JSON body {"username": ..., "password": ...} and
	// answers with {"token": "<jwt>"}.
	LoginURL string

	Username string
	Password string

	// Cache persists the token between runs (optional).
	Cache tokencache.Store

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// PasswordLogin exchanges a username and password for a JWT bearer token and
// reuses it until the exp claim says otherwise.
type PasswordLogin struct {
	config     PasswordLoginConfig
	httpClient *http.Client

	mu    sync.Mutex
	cache *entryCache
}

// NewPasswordLogin creates a password login provider.
func NewPasswordLogin(cfg PasswordLoginConfig) (*PasswordLogin, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrNoCredentials)
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultDuspotLoginURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	key := tokencache.Key{Source: cfg.Source, Username: cfg.Username}
	return &PasswordLogin{
		config:     cfg,
		httpClient: httpClient,
		cache:      newEntryCache(cfg.Cache, key),
	}, nil
}

// Token returns a valid JWT, logging in when none is cached.
func (p *PasswordLogin) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry := p.cache.load(ctx); entry != nil && !entry.IsExpired() {
		return entry.AccessToken, nil
	}

	entry, err := p.login(ctx)
	if err != nil {
		return "", err
	}
	p.cache.save(ctx, entry)
	return entry.AccessToken, nil
}

// Invalidate discards the cached token.
func (p *PasswordLogin) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.expire(ctx)
}

func (p *PasswordLogin) login(ctx context.Context) (*tokencache.Entry, error) {
	body, err := json.Marshal(map[string]string{
		"username": p.config.Username,
		"password": p.config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.LoginURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: login returned status %d: %s", ErrAuthenticationFailed, resp.StatusCode, msg)
	}

	token := gjson.GetBytes(data, "token").String()
	if token == "" {
		return nil, fmt.Errorf("%w: login response has no token", ErrAuthenticationFailed)
	}

	now := time.Now()
	expires, ok := jwtExpiry(token)
	if !ok {
		expires = now.Add(DefaultTokenLifetime)
	}

	p.cache.logger.Info().
		Str("username", p.config.Username).
		Time("expires", expires).
		Msg("Logged in")

	return &tokencache.Entry{
		AccessToken: token,
		TokenType:   "Bearer",
		Expires:     expires,
		CachedAt:    now,
	}, nil
}
