package gateway

import "fmt"

// AuthError is returned when a request cannot be authorized: no token could
// be obtained, or renewing a rejected token failed. Err carries the engine
// error, so auth.IsTerminal and errors.Is(err, auth.ErrRedirecting) work on it.
type AuthError struct {
	// StatusCode is the downstream status that triggered renewal, or 0 when
	// no request was sent.
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request unauthorized (status %d) and token renewal failed: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request not sent, no usable access token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
