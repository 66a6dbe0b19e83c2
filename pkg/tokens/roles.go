package tokens

import "strings"

// Role is the coarse role the storefront derives from token claims.
type Role string

const (
	// RoleNone means there is no token or it could not be decoded.
	RoleNone  Role = ""
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// IsAdmin reports whether r is RoleAdmin.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// IsUser reports whether r is RoleUser.
func (r Role) IsUser() bool { return r == RoleUser }

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}

// Roles collects role names from the first of the authorities, roles or
// scope claims that is present. Scope entries become ROLE_<SCOPE>.
func (c Claims) Roles() []string {
	if roles, ok := c.StringsClaim("authorities"); ok {
		return roles
	}
	if roles, ok := c.StringsClaim("roles"); ok {
		return roles
	}
	scopes := c.Scopes()
	if len(scopes) == 0 {
		return nil
	}
	roles := make([]string, len(scopes))
	for i, s := range scopes {
		roles[i] = "ROLE_" + strings.ToUpper(s)
	}
	return roles
}

// Role picks the highest role present, ADMIN over USER. A decodable token
// without a recognised role is a USER.
func (c Claims) Role() Role {
	for _, r := range c.Roles() {
		if r == "ROLE_ADMIN" || r == "ADMIN" {
			return RoleAdmin
		}
	}
	return RoleUser
}

// RoleFromToken decodes token and returns its role, or RoleNone when the
// token is empty or undecodable.
func RoleFromToken(token string) Role {
	claims, ok := DecodeClaims(token)
	if !ok {
		return RoleNone
	}
	return claims.Role()
}
