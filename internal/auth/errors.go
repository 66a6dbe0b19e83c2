package auth

import (
	"errors"
	"fmt"
)

// ErrProtocol is the common cause of every error that means the authorization
// callback cannot be trusted or completed.
var ErrProtocol = errors.New("oauth protocol error")

var (
	// ErrMissingVerifier is returned when a callback arrives but no PKCE
	// verifier is stored for this session. No token request is made.
	ErrMissingVerifier = fmt.Errorf("%w: no PKCE code verifier stored for this session", ErrProtocol)

	// ErrStateMismatch is returned when the callback state differs from the
	// one issued with the authorization request.
	ErrStateMismatch = fmt.Errorf("%w: callback state does not match the pending authorization request", ErrProtocol)

	// ErrNoRefreshToken is returned by Refresh when the store holds no
	// refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshTokenExpired is returned by Refresh when the stored refresh
	// token is a JWT whose exp has passed. The store is cleared.
	ErrRefreshTokenExpired = errors.New("refresh token has expired")

	// ErrRedirecting is returned by Renew under the redirect strategy once the
	// re-authorization navigation has been issued. The caller's request cannot
	// complete in this attempt.
	ErrRedirecting = errors.New("re-authorization redirect issued")

	// ErrAuthorizationPending is returned by Renew under the redirect
	// strategy when an earlier authorization is still waiting for its
	// callback. No new navigation is issued.
	ErrAuthorizationPending = fmt.Errorf("%w: an authorization is already waiting for its callback", ErrRedirecting)

	// ErrRenewalThrottled is returned when renewals exceed the configured rate.
	ErrRenewalThrottled = errors.New("token renewal throttled")

	// ErrAuthRequired means the session holds nothing that can produce an
	// access token; a new interactive login is needed.
	ErrAuthRequired = errors.New("authentication required")
)

// CallbackError carries an error returned by the authorization server in the
// redirect query, such as access_denied or login_required.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

func (e *CallbackError) Unwrap() error {
	return ErrProtocol
}

// TokenExchangeError is returned when the authorization code could not be
// exchanged for tokens.
type TokenExchangeError struct {
	// StatusCode is the token endpoint status, 0 for transport failures.
	StatusCode int
	Err        error
}

func (e *TokenExchangeError) Error() string {
	return e.Err.Error()
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// RefreshError is returned when the refresh_token grant fails.
type RefreshError struct {
	// StatusCode is the token endpoint status, 0 for transport failures.
	StatusCode int

	// Terminal is true when the server rejected the refresh token itself.
	// The store has been cleared and only a new login can recover.
	Terminal bool

	Err error
}

func (e *RefreshError) Error() string {
	return e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err means the session is over and retrying the
// same operation cannot succeed without a new login.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, ErrRefreshTokenExpired) ||
		errors.Is(err, ErrAuthRequired) ||
		errors.Is(err, ErrProtocol) {
		return true
	}
	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		return refreshErr.Terminal
	}
	return false
}
