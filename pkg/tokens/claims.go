package tokens

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded, unverified payload of a JWT.
type Claims map[string]any

// ExpiresAt returns the exp claim. Values that are not JSON numbers count as
// absent.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Subject returns the sub claim.
func (c Claims) Subject() string {
	return c.StringClaim("sub")
}

// Email returns the email claim.
func (c Claims) Email() string {
	return c.StringClaim("email")
}

// Name returns the name claim.
func (c Claims) Name() string {
	return c.StringClaim("name")
}

// Scopes splits the space-separated scope claim.
func (c Claims) Scopes() []string {
	return strings.Fields(c.StringClaim("scope"))
}

// StringClaim returns a string-valued claim, or "" when absent or of another type.
func (c Claims) StringClaim(name string) string {
	s, _ := c[name].(string)
	return s
}

// StringsClaim returns an array-of-strings claim. Non-string elements are skipped.
func (c Claims) StringsClaim(name string) ([]string, bool) {
	raw, ok := c[name].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// UserInfo is the identity read from an access token.
type UserInfo struct {
	Subject     string   `json:"subject"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Authorities []string `json:"authorities"`
	Role        Role     `json:"role"`
}

// ErrNoToken is returned when there is no access token to read.
var ErrNoToken = errors.New("no access token available")

// ErrUndecodable is returned when the token payload cannot be decoded.
var ErrUndecodable = errors.New("unable to decode token payload")

// UserInfoFromToken extracts the user's identity from an access token,
// falling back from sub to username, email to sub and name to given_name.
func UserInfoFromToken(token string) (*UserInfo, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims, ok := DecodeClaims(token)
	if !ok {
		return nil, ErrUndecodable
	}

	info := &UserInfo{
		Subject:     firstNonEmpty(claims.Subject(), claims.StringClaim("username")),
		Email:       firstNonEmpty(claims.Email(), claims.Subject()),
		Name:        firstNonEmpty(claims.Name(), claims.StringClaim("given_name")),
		Authorities: claims.Roles(),
		Role:        claims.Role(),
	}
	if len(info.Authorities) == 0 {
		info.Authorities = []string{"ROLE_USER"}
	}
	return info, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
