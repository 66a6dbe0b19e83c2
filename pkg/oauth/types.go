package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// AuthorizePath and TokenPath are the endpoint paths relative to the
	// authorization server base URL.
	AuthorizePath = "/oauth2/authorize"
	TokenPath     = "/oauth2/token"
)

// Config describes a public OAuth client registered with the authorization server.
type Config struct {
	// BaseURL is the authorization server base URL, e.g. http://localhost:8081.
	BaseURL string

	// ClientID is the public client identifier. No secret is ever sent.
	ClientID string

	// RedirectURI must match the registration exactly.
	RedirectURI string

	// Scopes are joined with single spaces on the wire.
	Scopes []string
}

// AuthorizeEndpoint returns the absolute authorization endpoint URL.
func (c Config) AuthorizeEndpoint() string {
	return strings.TrimSuffix(c.BaseURL, "/") + AuthorizePath
}

// TokenEndpoint returns the absolute token endpoint URL.
func (c Config) TokenEndpoint() string {
	return strings.TrimSuffix(c.BaseURL, "/") + TokenPath
}

// Scope returns the space-separated scope string.
func (c Config) Scope() string {
	return strings.Join(c.Scopes, " ")
}

// Token is the set of credentials returned by the token endpoint.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`

	// ExpiresAt is derived from expires_in when the server reports it.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// tokenFromOAuth2 copies the fields this client cares about, including the
// id_token and scope extras.
func tokenFromOAuth2(tok *oauth2.Token) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		t.IDToken = idToken
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	return t
}

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) challenge.
type PKCEChallenge struct {
	// CodeVerifier is kept secret until the code exchange.
	CodeVerifier string

	// CodeChallenge is the SHA256 hash of the verifier (base64url-encoded).
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}
