package auth

import "fmt"

// AuthState represents where the engine is in the authorization lifecycle.
// It is derived from the credential store on every call, so two engines
// sharing one session always agree.
type AuthState int

const (
	// AuthStateUnauthenticated means no access token and no pending login.
	AuthStateUnauthenticated AuthState = iota
	// AuthStateAwaitingCallback means a PKCE verifier is stored and the
	// authorization redirect is outstanding.
	AuthStateAwaitingCallback
	// AuthStateAuthenticated means an access token is stored.
	AuthStateAuthenticated
	// AuthStateRenewing means a renewal is in flight in this process.
	AuthStateRenewing
)

// String returns a human-readable representation of the auth state.
func (s AuthState) String() string {
	switch s {
	case AuthStateUnauthenticated:
		return "unauthenticated"
	case AuthStateAwaitingCallback:
		return "awaiting_callback"
	case AuthStateAuthenticated:
		return "authenticated"
	case AuthStateRenewing:
		return "renewing"
	default:
		return "unknown"
	}
}

// Strategy selects how an expired access token is replaced.
type Strategy string

const (
	// StrategyRefreshToken uses the refresh_token grant.
	StrategyRefreshToken Strategy = "refresh_token"
	// StrategyRedirect navigates to the authorization endpoint with
	// prompt=none and relies on the server-side session.
	StrategyRedirect Strategy = "redirect"
)

// ParseStrategy converts a configuration value into a Strategy. The empty
// string selects StrategyRefreshToken.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyRefreshToken:
		return StrategyRefreshToken, nil
	case StrategyRedirect:
		return StrategyRedirect, nil
	default:
		return "", fmt.Errorf("unknown renewal strategy %q (expected %q or %q)", s, StrategyRefreshToken, StrategyRedirect)
	}
}
