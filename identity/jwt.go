package identity

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ExpiresAt reads the exp claim of a JWT access token without verifying it. Opaque or
// malformed tokens report false.
func ExpiresAt(rawToken string) (time.Time, bool) {
	if strings.Count(rawToken, ".") != 2 {
		return time.Time{}, false
	}
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// expiryLeeway treats tokens about to expire as expired.
const expiryLeeway = 10 * time.Second

// IsExpired reports whether rawToken is a JWT whose exp is at or before now. Tokens
// without a readable exp are never considered expired.
func IsExpired(rawToken string, now time.Time) bool {
	exp, ok := ExpiresAt(rawToken)
	if !ok {
		return false
	}
	return !now.Add(expiryLeeway).Before(exp)
}
