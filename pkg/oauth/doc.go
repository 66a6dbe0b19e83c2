// Package oauth provides the OAuth 2.1 public-client primitives used by
// storefront: PKCE generation, authorization URL construction and the token
// endpoint grants.
//
// # Core Components
//
//   - PKCE: code verifier and S256 challenge generation (RFC 7636)
//   - Config: client registration (base URL, client id, redirect URI, scopes)
//   - Client: authorization URL, authorization_code and refresh_token grants
//   - TokenError: non-2xx token endpoint responses with their HTTP status
//
// Client sits on golang.org/x/oauth2 with AuthStyleInParams, so client_id is
// sent in the form body and no client secret is ever transmitted.
//
// # Usage
//
//	import "storefront/pkg/oauth"
//
//	client := oauth.NewClient(cfg, oauth.WithLogger(logger))
//	pkce, err := oauth.GeneratePKCE()
//	authURL := client.AuthorizationURL(state, pkce, nil)
//	token, err := client.ExchangeCode(ctx, code, pkce.CodeVerifier)
package oauth
