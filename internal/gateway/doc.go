// Package gateway sends authorized requests to the storefront API.
//
// A Gateway is an http.RoundTripper. Every request gets the current access
// token as a bearer credential and an X-Request-ID. When the API answers 401
// the gateway asks the auth engine to renew the token it used and retries
// exactly once; renewal failures surface as *AuthError and are never retried.
// Concurrent requests that hit 401 together share a single renewal.
package gateway
