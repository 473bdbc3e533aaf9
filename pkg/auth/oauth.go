package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Sternrassler/matexport/pkg/tokencache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

const (
	// DefaultTenant lets both work and personal Microsoft accounts sign in.
	DefaultTenant = "common"

	// ScopeUserRead is the delegated scope the Matching Materials web app
	// requests.
	ScopeUserRead = "https://graph.microsoft.com/User.Read"

	// ScopeOfflineAccess asks Entra ID for a refresh token.
	ScopeOfflineAccess = "offline_access"
)

// MicrosoftEndpoint returns the Entra ID v2 endpoints for tenant, including
// the device authorization endpoint.
func MicrosoftEndpoint(tenant string) oauth2.Endpoint {
	if tenant == "" {
		tenant = DefaultTenant
	}
	endpoint := microsoft.AzureADEndpoint(tenant)
	endpoint.DeviceAuthURL = "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0/devicecode"
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return endpoint
}

// PromptFunc shows the device code instructions to the user.
type PromptFunc func(ctx context.Context, da *oauth2.DeviceAuthResponse) error

// WriterPrompt returns a PromptFunc that prints the verification URL and
// user code to w.
func WriterPrompt(w io.Writer) PromptFunc {
	return func(_ context.Context, da *oauth2.DeviceAuthResponse) error {
		_, err := fmt.Fprintf(w, "To sign in, open %s and enter the code %s\n", da.VerificationURI, da.UserCode)
		return err
	}
}

// DeviceCodeConfig configures the OAuth 2.0 device authorization grant.
type DeviceCodeConfig struct {
	// Source labels the token in the cache (e.g. "matching-materials").
	Source string

	// ClientID of the public client application.
	ClientID string

	// Tenant is the Entra ID tenant; "common" when empty.
	Tenant string

	// Scopes default to User.Read and offline_access.
	Scopes []string

	// Endpoint overrides the Entra ID endpoints (tests, other providers).
	Endpoint *oauth2.Endpoint

	// Prompt defaults to printing instructions on stderr.
	Prompt PromptFunc

	// Cache persists access and refresh tokens between runs (optional).
	Cache tokencache.Store

	HTTPClient *http.Client
}

// DeviceCode acquires tokens interactively through the device code flow.
// A cached refresh token is tried first so the user is only prompted when
// no silent renewal is possible.
type DeviceCode struct {
	oauth      *oauth2.Config
	prompt     PromptFunc
	httpClient *http.Client

	mu    sync.Mutex
	cache *entryCache
}

// NewDeviceCode creates a device code provider.
func NewDeviceCode(cfg DeviceCodeConfig) (*DeviceCode, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrNoCredentials)
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{ScopeUserRead, ScopeOfflineAccess}
	}
	if cfg.Prompt == nil {
		cfg.Prompt = WriterPrompt(os.Stderr)
	}

	endpoint := MicrosoftEndpoint(cfg.Tenant)
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	key := tokencache.Key{Source: cfg.Source, ClientID: cfg.ClientID, Scopes: cfg.Scopes}
	return &DeviceCode{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: endpoint,
			Scopes:   cfg.Scopes,
		},
		prompt:     cfg.Prompt,
		httpClient: cfg.HTTPClient,
		cache:      newEntryCache(cfg.Cache, key),
	}, nil
}

// Token returns a valid access token, refreshing silently or running the
// device flow as needed.
func (d *DeviceCode) Token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx = withHTTPClient(ctx, d.httpClient)

	entry := d.cache.load(ctx)
	if entry != nil && !entry.IsExpired() {
		return entry.AccessToken, nil
	}

	if entry != nil && entry.Refreshable() {
		tok, err := d.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: entry.RefreshToken}).Token()
		if err == nil {
			d.cache.logger.Debug().Msg("Token refreshed silently")
			return d.store(ctx, tok)
		}
		d.cache.logger.Warn().Err(err).Msg("Silent token refresh failed, starting device flow")
	}

	da, err := d.oauth.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: device authorization: %v", ErrAuthenticationFailed, err)
	}
	if err := d.prompt(ctx, da); err != nil {
		return "", fmt.Errorf("device code prompt: %w", err)
	}

	tok, err := d.oauth.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", fmt.Errorf("%w: device access token: %v", ErrAuthenticationFailed, err)
	}

	d.cache.logger.Info().Time("expires", tok.Expiry).Msg("Device code sign-in complete")
	return d.store(ctx, tok)
}

// Invalidate discards the access token and keeps the refresh token.
func (d *DeviceCode) Invalidate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.expire(ctx)
}

func (d *DeviceCode) store(ctx context.Context, tok *oauth2.Token) (string, error) {
	entry := entryFromToken(tok)
	d.cache.save(ctx, entry)
	return entry.AccessToken, nil
}

// ClientCredentialsConfig configures the OAuth 2.0 client credentials grant.
type ClientCredentialsConfig struct {
	Source       string
	ClientID     string
	ClientSecret string

	// Tenant is used to derive TokenURL when TokenURL is empty.
	Tenant   string
	TokenURL string

	// Scopes default to the Graph ".default" scope.
	Scopes []string

	Cache      tokencache.Store
	HTTPClient *http.Client
}

// ClientCredentials acquires app-only tokens with a client secret.
type ClientCredentials struct {
	oauth      *clientcredentials.Config
	httpClient *http.Client

	mu    sync.Mutex
	cache *entryCache
}

// NewClientCredentials creates a client credentials provider.
func NewClientCredentials(cfg ClientCredentialsConfig) (*ClientCredentials, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", ErrNoCredentials)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = MicrosoftEndpoint(cfg.Tenant).TokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"https://graph.microsoft.com/.default"}
	}

	key := tokencache.Key{Source: cfg.Source, ClientID: cfg.ClientID, Scopes: cfg.Scopes}
	return &ClientCredentials{
		oauth: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: cfg.HTTPClient,
		cache:      newEntryCache(cfg.Cache, key),
	}, nil
}

// Token returns a valid access token.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry := c.cache.load(ctx); entry != nil && !entry.IsExpired() {
		return entry.AccessToken, nil
	}

	tok, err := c.oauth.Token(withHTTPClient(ctx, c.httpClient))
	if err != nil {
		return "", fmt.Errorf("%w: client credentials: %v", ErrAuthenticationFailed, err)
	}

	entry := entryFromToken(tok)
	c.cache.save(ctx, entry)
	return entry.AccessToken, nil
}

// Invalidate discards the cached token.
func (c *ClientCredentials) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.expire(ctx)
}

func entryFromToken(tok *oauth2.Token) *tokencache.Entry {
	now := time.Now()
	expires := tok.Expiry
	if expires.IsZero() {
		expires = now.Add(DefaultTokenLifetime)
	}
	return &tokencache.Entry{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		Expires:      expires,
		CachedAt:     now,
	}
}

func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
