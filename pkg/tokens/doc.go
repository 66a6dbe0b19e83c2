// Package tokens decodes JWT access and ID tokens on the client side.
//
// Nothing here verifies signatures. The payload is only used to decide when
// to renew (exp) and to show who is signed in (sub, email, name, roles).
// Every expiry check fails closed: a token that cannot be decoded, or that
// has no exp claim, is treated as expired.
//
// Claims are decoded on every call and never cached, so a token replaced in
// the credential store is picked up immediately.
package tokens
