package config

import "time"

// StorefrontConfig is the top-level configuration structure for storefront.
type StorefrontConfig struct {
	Auth    AuthConfig    `yaml:"auth"`
	Gateway GatewayConfig `yaml:"gateway"`
	Session SessionConfig `yaml:"session"`
	App     AppConfig     `yaml:"app"`
	Logging LoggingConfig `yaml:"logging"`
}

// AuthConfig describes the authorization server and this public client.
type AuthConfig struct {
	// BaseURL is the authorization server base URL (default: http://localhost:8081).
	BaseURL string `yaml:"baseURL"`

	// ClientID is the public client id (default: fp_frontend).
	ClientID string `yaml:"clientID"`

	// RedirectURI is the registered redirect URI (default: http://localhost:3000/callback).
	RedirectURI string `yaml:"redirectURI"`

	// Scopes are the requested scopes.
	Scopes []string `yaml:"scopes,omitempty"`

	// Renewal is refresh_token or redirect.
	Renewal string `yaml:"renewal,omitempty"`

	// VerifierLength is the PKCE verifier length, 43..128 (default: 128).
	VerifierLength int `yaml:"verifierLength,omitempty"`
}

// GatewayConfig configures authenticated API calls.
type GatewayConfig struct {
	BaseURL    string        `yaml:"baseURL"`              // API gateway base URL (default: http://localhost:8080)
	Preemptive bool          `yaml:"preemptive,omitempty"` // Redirect before sending with an expiring token (redirect renewal only)
	Timeout    time.Duration `yaml:"timeout,omitempty"`    // Per-request timeout (default: 30s)
}

// SessionConfig configures credential storage and the expiry monitor.
type SessionConfig struct {
	Name          string        `yaml:"name,omitempty"`          // Session id; separate sessions never share credentials (default: "default")
	Storage       string        `yaml:"storage,omitempty"`       // memory, file or keyring (default: file)
	Dir           string        `yaml:"dir,omitempty"`           // Directory for file storage (default: $XDG_RUNTIME_DIR/storefront)
	CheckInterval time.Duration `yaml:"checkInterval,omitempty"` // Expiry check period (default: 1m)
	ExpiringSoon  time.Duration `yaml:"expiringSoon,omitempty"`  // Renewal horizon (default: 2m)
}

// AppConfig describes the application around the auth core.
type AppConfig struct {
	EntryURL string `yaml:"entryURL,omitempty"` // Opened after logout; empty disables navigation
}

// LoggingConfig configures log output of long-running commands.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn or error (default: info)
	File       string `yaml:"file,omitempty"`       // Log file for watch; empty logs to stderr
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`  // Rotate after this size (default: 10)
	MaxBackups int    `yaml:"maxBackups,omitempty"` // Rotated files to keep (default: 3)
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"` // Days to keep rotated files (default: 28)
}
