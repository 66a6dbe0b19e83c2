package oauth

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenError is returned when the token endpoint answers with a non-2xx status.
type TokenError struct {
	// StatusCode is the HTTP status of the token response.
	StatusCode int

	// ErrorCode is the RFC 6749 "error" field, e.g. "invalid_grant".
	ErrorCode string

	// Description is the optional "error_description" field.
	Description string

	Err error
}

func (e *TokenError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("token request failed with status %d: %s", e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("token request failed with status %d", e.StatusCode)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// IsClientRejection reports whether the server rejected the grant itself
// (400 or 401) as opposed to failing for an unrelated reason.
func (e *TokenError) IsClientRejection() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnauthorized
}

// StatusCode extracts the token endpoint status from err, or 0 when the
// request never produced an HTTP response.
func StatusCode(err error) int {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.StatusCode
	}
	return 0
}

// translateError turns x/oauth2 retrieval errors into *TokenError and leaves
// transport errors untouched.
func translateError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil {
		return err
	}
	return &TokenError{
		StatusCode:  retrieveErr.Response.StatusCode,
		ErrorCode:   retrieveErr.ErrorCode,
		Description: retrieveErr.ErrorDescription,
		Err:         err,
	}
}
