package cli

import (
	"time"

	"storefront/internal/auth"
	"storefront/internal/credstore"
	"storefront/pkg/tokens"
)

// SessionView is the user-facing summary of one stored session. It never
// carries token values.
type SessionView struct {
	Session          string     `json:"session" yaml:"session"`
	Storage          string     `json:"storage" yaml:"storage"`
	State            string     `json:"state" yaml:"state"`
	Subject          string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	Email            string     `json:"email,omitempty" yaml:"email,omitempty"`
	Name             string     `json:"name,omitempty" yaml:"name,omitempty"`
	Role             string     `json:"role,omitempty" yaml:"role,omitempty"`
	Authorities      []string   `json:"authorities,omitempty" yaml:"authorities,omitempty"`
	Scopes           []string   `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	HasRefreshToken  bool       `json:"hasRefreshToken" yaml:"hasRefreshToken"`
	RefreshExpiresAt *time.Time `json:"refreshExpiresAt,omitempty" yaml:"refreshExpiresAt,omitempty"`
}

// Authenticated reports whether the session holds an access token.
func (v SessionView) Authenticated() bool {
	return v.State == auth.AuthStateAuthenticated.String() || v.State == auth.AuthStateRenewing.String()
}

// DescribeSession summarizes record, read from the named session.
func DescribeSession(session, storage string, state auth.AuthState, record credstore.Record) SessionView {
	view := SessionView{
		Session:         session,
		Storage:         storage,
		State:           state.String(),
		HasRefreshToken: record[credstore.KeyRefreshToken] != "",
	}

	if exp, ok := tokens.ExpiresAt(record[credstore.KeyRefreshToken]); ok {
		view.RefreshExpiresAt = &exp
	}

	accessToken := record[credstore.KeyAccessToken]
	if exp, ok := tokens.ExpiresAt(accessToken); ok {
		view.ExpiresAt = &exp
	}
	if claims, ok := tokens.DecodeClaims(accessToken); ok {
		view.Scopes = claims.Scopes()
	}
	if info, err := tokens.UserInfoFromToken(accessToken); err == nil {
		view.Subject = info.Subject
		view.Email = info.Email
		view.Name = info.Name
		view.Role = info.Role.String()
		view.Authorities = info.Authorities
	}
	return view
}
