package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiringSoonHorizon is how far ahead of expiry a token counts as
// expiring soon.
const DefaultExpiringSoonHorizon = 120 * time.Second

// parser only decodes. Signatures are never checked on this side; the
// resource server is the authority on token validity.
var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeClaims reads the payload segment of a compact JWT without verifying
// it. It returns false for anything that is not three dot-separated
// base64url segments with JSON header and payload.
func DecodeClaims(token string) (Claims, bool) {
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil && !isUnverifiableOnly(err) {
		return nil, false
	}

	return Claims(claims), true
}

// isUnverifiableOnly reports whether err only complains about the signing
// method. The payload has been decoded at that point and is usable.
func isUnverifiableOnly(err error) bool {
	return errors.Is(err, jwt.ErrTokenUnverifiable) && !errors.Is(err, jwt.ErrTokenMalformed)
}

// ExpiresAt returns the exp claim of token, or false when the token cannot
// be decoded or carries no usable exp.
func ExpiresAt(token string) (time.Time, bool) {
	claims, ok := DecodeClaims(token)
	if !ok {
		return time.Time{}, false
	}
	return claims.ExpiresAt()
}

// IsExpired reports whether token is unusable at now. Empty, undecodable and
// exp-less tokens are treated as expired.
func IsExpired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return true
	}
	return !now.Before(exp)
}

// IsExpiringSoon reports whether token expires within horizon of now, using
// the same fail-closed policy as IsExpired.
func IsExpiringSoon(token string, horizon time.Duration, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return true
	}
	return exp.Sub(now) <= horizon
}

// TimeUntilExpiry returns the remaining lifetime, or zero when the token is
// expired or undecodable.
func TimeUntilExpiry(token string, now time.Time) time.Duration {
	exp, ok := ExpiresAt(token)
	if !ok || !now.Before(exp) {
		return 0
	}
	return exp.Sub(now)
}
