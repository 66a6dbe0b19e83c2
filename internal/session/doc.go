// Package session exposes the authentication state of a storefront session
// and keeps it alive.
//
// An Observer derives a Snapshot from the credential store on demand and
// pushes a new one to subscribers after every change, including changes made
// by other processes sharing the session file. Run checks the access token on
// a fixed interval and renews it through the auth engine before it expires,
// independently of any request traffic.
package session
