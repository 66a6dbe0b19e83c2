// Package mock provides test doubles for the storefront authorization
// server and gateway.
//
// Key Components:
//
// OAuthServer: an OAuth 2.1 authorization server with /oauth2/authorize and
// /oauth2/token. It approves every authorization request (or answers
// error=login_required to prompt=none while the user's session is inactive),
// verifies PKCE, rotates refresh tokens, counts token endpoint calls and can
// be told to fail the next requests with a given status. Tokens are HS256
// JWTs carrying sub, email, name, exp, scope and optional authorities.
//
// ResourceServer: a gateway stand-in that accepts only bearer tokens the
// OAuthServer currently considers valid and records every request it sees.
//
// Clock / MockClock: controllable time so tests can expire tokens without
// sleeping.
//
// Usage:
//
//	auth := mock.NewOAuthServer(mock.OAuthServerConfig{})
//	authTS := httptest.NewServer(auth.Handler())
//	defer authTS.Close()
//
//	api := mock.NewResourceServer(auth)
//	apiTS := httptest.NewServer(api.Handler())
//	defer apiTS.Close()
package mock
