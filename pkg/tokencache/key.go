package tokencache

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies the credentials a token was issued for.
type Key struct {
	// Source is the marketplace the token authenticates against
	// (e.g. "duspot", "matching-materials").
	Source string

	// ClientID is the OAuth client ID, empty for password logins.
	ClientID string

	// Username is the login name, empty for OAuth flows.
	Username string

	// Scopes requested for the token.
	Scopes []string
}

// String generates a deterministic key string.
// Format: matexport:token:source:client=id:user=name:scopes=a,b
//
// Example:
//
//	matexport:token:duspot:user=info@example.com
func (k Key) String() string {
	parts := []string{"matexport", "token"}

	if k.Source != "" {
		parts = append(parts, k.Source)
	}
	if k.ClientID != "" {
		parts = append(parts, fmt.Sprintf("client=%s", k.ClientID))
	}
	if k.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", k.Username))
	}

	if len(k.Scopes) > 0 {
		scopes := append([]string(nil), k.Scopes...)
		sort.Strings(scopes)
		parts = append(parts, fmt.Sprintf("scopes=%s", strings.Join(scopes, ",")))
	}

	return strings.Join(parts, ":")
}
