package config

import "time"

const (
	DefaultAuthBaseURL    = "http://localhost:8081"
	DefaultClientID       = "fp_frontend"
	DefaultRedirectURI    = "http://localhost:3000/callback"
	DefaultGatewayBaseURL = "http://localhost:8080"
	DefaultRenewal        = "refresh_token"
	DefaultStorage        = "file"
	DefaultSessionName    = "default"
	DefaultCheckInterval  = time.Minute
	DefaultExpiringSoon   = 2 * time.Minute
	DefaultGatewayTimeout = 30 * time.Second
	DefaultLogLevel       = "info"
)

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{"openid", "profile", "api.read", "api.write"}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() StorefrontConfig {
	return StorefrontConfig{
		Auth: AuthConfig{
			BaseURL:     DefaultAuthBaseURL,
			ClientID:    DefaultClientID,
			RedirectURI: DefaultRedirectURI,
			Scopes:      append([]string(nil), DefaultScopes...),
			Renewal:     DefaultRenewal,
		},
		Gateway: GatewayConfig{
			BaseURL: DefaultGatewayBaseURL,
			Timeout: DefaultGatewayTimeout,
		},
		Session: SessionConfig{
			Name:          DefaultSessionName,
			Storage:       DefaultStorage,
			CheckInterval: DefaultCheckInterval,
			ExpiringSoon:  DefaultExpiringSoon,
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
