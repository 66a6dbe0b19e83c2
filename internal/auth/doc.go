// Package auth implements the storefront's OAuth 2.1 Authorization Code +
// PKCE client and the access token lifecycle built on it.
//
// The Engine is the single owner of token acquisition for a session:
//
//   - Login stores a fresh PKCE verifier and state in the credential store and
//     navigates to the authorization endpoint.
//   - HandleCallback validates the redirect, exchanges the code and stores
//     every token in one atomic write.
//   - Refresh performs the refresh_token grant. A rejected refresh token
//     clears the session; transient failures leave it untouched.
//   - RedirectToReauth starts a silent prompt=none authorization.
//   - Renew is the entry point for everyone else. Concurrent callers share a
//     single renewal, and a caller whose token was already replaced receives
//     the new one without any network traffic.
//
// For command line use, LoginWithCallbackServer serves the redirect URI on the
// loopback interface for the duration of one login.
package auth
