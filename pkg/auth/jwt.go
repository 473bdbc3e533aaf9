package auth

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// jwtExpiry returns the exp claim of a JWT. The signature is not verified;
// the token is only inspected to know when to log in again.
func jwtExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, false
	}

	exp := gjson.GetBytes(payload, "exp")
	if exp.Type != gjson.Number {
		return time.Time{}, false
	}
	return time.Unix(exp.Int(), 0), true
}
