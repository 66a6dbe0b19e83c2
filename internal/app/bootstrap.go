package app

import (
	"fmt"
	"io"
	"os"

	"storefront/internal/config"
	"storefront/pkg/logging"
)

// Application bootstraps and runs one storefront session.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load configuration, initialize logging, build services
//  2. Execution phase: run a command against the services, or RunWatch
//
// Example usage:
//
//	cfg := app.NewConfig(false, false, "", "work")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer application.Close()
//	return application.RunWatch(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication performs the bootstrap sequence:
//
//  1. Configures logging based on the debug and quiet flags
//  2. Loads the storefront configuration unless cfg.Storefront is set
//  3. Applies the session override and re-applies the configured log level
//  4. Initializes the session services
func NewApplication(cfg *Config, opts ...ServiceOption) (*Application, error) {
	initLogging(cfg, logging.LevelInfo)

	if cfg.Storefront == nil {
		storefrontCfg, err := config.Load(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load storefront configuration")
			return nil, fmt.Errorf("failed to load storefront configuration: %w", err)
		}
		cfg.Storefront = &storefrontCfg
	}
	if cfg.Session != "" {
		cfg.Storefront.Session.Name = cfg.Session
	}

	level, err := logging.ParseLevel(cfg.Storefront.Logging.Level)
	if err != nil {
		return nil, err
	}
	initLogging(cfg, level)
	logging.Debug("Bootstrap", "Using auth server %s and gateway %s", cfg.Storefront.Auth.BaseURL, cfg.Storefront.Gateway.BaseURL)

	services, err := InitializeServices(cfg.Storefront, opts...)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config, level logging.LogLevel) {
	if cfg.Debug {
		level = logging.LevelDebug
	}
	// Command output owns stdout.
	var logOutput io.Writer = os.Stderr
	if cfg.Quiet {
		logOutput = io.Discard
	}
	logging.InitForCLI(level, logOutput)
}

// Services returns the initialized session services.
func (a *Application) Services() *Services {
	return a.services
}

// Settings returns the resolved configuration.
func (a *Application) Settings() config.StorefrontConfig {
	return *a.config.Storefront
}

// Close releases the services.
func (a *Application) Close() {
	a.services.Close()
}
