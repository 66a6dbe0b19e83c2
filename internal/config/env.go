package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"storefront/pkg/logging"
)

// Environment variables that override the configuration file.
const (
	EnvAuthBaseURL = "STOREFRONT_AUTH_BASE_URL"
	EnvClientID    = "STOREFRONT_CLIENT_ID"
	EnvRedirectURI = "STOREFRONT_REDIRECT_URI"
	EnvScopes      = "STOREFRONT_SCOPES"
	EnvGatewayURL  = "STOREFRONT_GATEWAY_URL"
	EnvRenewal     = "STOREFRONT_RENEWAL"
	EnvPreemptive  = "STOREFRONT_PREEMPTIVE"
	EnvStorage     = "STOREFRONT_STORAGE"
	EnvSession     = "STOREFRONT_SESSION"
	EnvEntryURL    = "STOREFRONT_ENTRY_URL"
	EnvLogLevel    = "STOREFRONT_LOG_LEVEL"
)

// LoadDotEnv loads variables from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	logging.Debug("ConfigLoader", "Loaded environment from %s", path)
	return nil
}

// ApplyEnv overrides cfg with the STOREFRONT_* variables found by lookup.
func ApplyEnv(cfg *StorefrontConfig, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	str(EnvAuthBaseURL, &cfg.Auth.BaseURL)
	str(EnvClientID, &cfg.Auth.ClientID)
	str(EnvRedirectURI, &cfg.Auth.RedirectURI)
	str(EnvGatewayURL, &cfg.Gateway.BaseURL)
	str(EnvRenewal, &cfg.Auth.Renewal)
	str(EnvStorage, &cfg.Session.Storage)
	str(EnvSession, &cfg.Session.Name)
	str(EnvEntryURL, &cfg.App.EntryURL)
	str(EnvLogLevel, &cfg.Logging.Level)

	if v, ok := lookup(EnvScopes); ok && strings.TrimSpace(v) != "" {
		cfg.Auth.Scopes = strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' })
	}
	if v, ok := lookup(EnvPreemptive); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPreemptive, v, err)
		}
		cfg.Gateway.Preemptive = b
	}
	return nil
}
