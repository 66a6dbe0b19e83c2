package app

import (
	"storefront/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Quiet discards log output on the terminal.
	Quiet bool

	// Custom configuration file (optional).
	// When empty, ~/.config/storefront/config.yaml is used.
	ConfigPath string

	// Session overrides the configured session name when set.
	Session string

	// Storefront is the resolved configuration. NewApplication loads it
	// when nil.
	Storefront *config.StorefrontConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug, quiet bool, configPath, session string) *Config {
	return &Config{
		Debug:      debug,
		Quiet:      quiet,
		ConfigPath: configPath,
		Session:    session,
	}
}
