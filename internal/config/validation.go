package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"storefront/pkg/oauth"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the configuration and returns every problem found as a
// *ConfigurationError wrapping ValidationErrors, or nil.
func (c StorefrontConfig) Validate() error {
	var errs ValidationErrors

	validateURL(&errs, "auth.baseURL", c.Auth.BaseURL)
	validateURL(&errs, "auth.redirectURI", c.Auth.RedirectURI)
	validateURL(&errs, "gateway.baseURL", c.Gateway.BaseURL)
	if c.App.EntryURL != "" {
		validateURL(&errs, "app.entryURL", c.App.EntryURL)
	}

	if strings.TrimSpace(c.Auth.ClientID) == "" {
		errs.Add("auth.clientID", "is required")
	}
	switch c.Auth.Renewal {
	case "", "refresh_token", "redirect":
	default:
		errs.Add("auth.renewal", "must be refresh_token or redirect", c.Auth.Renewal)
	}
	if n := c.Auth.VerifierLength; n != 0 && (n < oauth.MinVerifierLength || n > oauth.MaxVerifierLength) {
		errs.Add("auth.verifierLength", fmt.Sprintf("must be between %d and %d", oauth.MinVerifierLength, oauth.MaxVerifierLength), n)
	}

	switch c.Session.Storage {
	case "memory", "file", "keyring":
	default:
		errs.Add("session.storage", "must be memory, file or keyring", c.Session.Storage)
	}
	validatePositive(&errs, "session.checkInterval", c.Session.CheckInterval)
	validatePositive(&errs, "session.expiringSoon", c.Session.ExpiringSoon)
	validatePositive(&errs, "gateway.timeout", c.Gateway.Timeout)

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs.Add("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}

	if !errs.HasErrors() {
		return nil
	}
	return &ConfigurationError{
		ErrorType: "validation",
		Message:   errs.Error(),
		Err:       errs,
	}
}

func validateURL(errs *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, "is required")
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(field, "must be an absolute http(s) URL", value)
	}
}

func validatePositive(errs *ValidationErrors, field string, d time.Duration) {
	if d <= 0 {
		errs.Add(field, "must be a positive duration", d.String())
	}
}
