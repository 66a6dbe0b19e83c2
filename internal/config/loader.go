package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"storefront/pkg/logging"
)

const (
	userConfigDir  = ".config/storefront"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns ~/.config/storefront/config.yaml.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig reads the configuration file at configFile on top of the
// defaults. A missing file yields the defaults.
func LoadConfig(configFile string) (StorefrontConfig, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config found at %s, using defaults", configFile)
			return config, nil
		}
		return StorefrontConfig{}, &ConfigurationError{
			FilePath:  configFile,
			ErrorType: "io",
			Message:   "cannot read configuration file",
			Err:       err,
		}
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return StorefrontConfig{}, &ConfigurationError{
			FilePath:    configFile,
			ErrorType:   "parse",
			Message:     "malformed YAML",
			Details:     err.Error(),
			Suggestions: []string{"Durations use Go syntax such as 90s or 2m", "Check indentation of nested sections"},
			Err:         err,
		}
	}
	logging.Debug("ConfigLoader", "Loaded configuration from %s", configFile)
	return config, nil
}

// Load resolves the complete configuration: defaults, then the YAML file
// (configFile or the default path when empty), then .env in the working
// directory and STOREFRONT_* environment variables. The result is validated.
func Load(configFile string) (StorefrontConfig, error) {
	if configFile == "" {
		path, err := GetDefaultConfigPath()
		if err != nil {
			return StorefrontConfig{}, err
		}
		configFile = path
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		return StorefrontConfig{}, err
	}

	if err := LoadDotEnv(".env"); err != nil {
		return StorefrontConfig{}, err
	}
	if err := ApplyEnv(&config, os.LookupEnv); err != nil {
		return StorefrontConfig{}, &ConfigurationError{ErrorType: "environment", Message: err.Error(), Err: err}
	}

	if err := config.Validate(); err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.FilePath = configFile
		}
		return StorefrontConfig{}, err
	}
	return config, nil
}
