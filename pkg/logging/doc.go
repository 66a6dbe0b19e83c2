// Package logging provides the subsystem logger used across storefront.
//
// It is built on log/slog. Every entry carries a subsystem attribute so the
// output of the engine, the credential store and the gateway can be told
// apart.
//
// # Usage
//
// Initialise once at startup, then log by subsystem:
//
//	import "storefront/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Auth", "Signed in as %s", subject)
//	logging.Error("Gateway", err, "request to %s failed", url)
//
// Components that log with key/value attributes take a *slog.Logger:
//
//	engine := auth.NewEngine(cfg, store, auth.WithLogger(logging.Logger("Auth")))
//
// Long running commands can log to a size-rotated JSON file instead:
//
//	closer := logging.InitForFile(logging.LevelInfo, logging.FileOptions{Path: path})
//	defer closer.Close()
//
// # Security
//
// Callers never pass token values to the logger. Credential writes are
// recorded with a SECURITY_AUDIT prefix that names the keys only.
package logging
