// Package app bootstraps a storefront session and runs its long-lived mode.
//
// # Architecture Overview
//
//  1. **Configuration (`config.go`)**: runtime flags plus the resolved storefront configuration
//  2. **Bootstrap (`bootstrap.go`)**: logging setup, configuration loading and service creation
//  3. **Services (`services.go`)**: the credential store, auth engine, gateway and observer of one session
//  4. **Modes (`modes.go`)**: the watch loop that keeps a session alive in the background
//
// # Bootstrap Sequence
//
//   - Logging goes to stderr so command output on stdout stays scriptable
//   - Configuration is loaded through internal/config unless supplied by the caller
//   - The --session flag overrides the configured session name before the store is opened
//
// # Watch Mode
//
// RunWatch runs the session observer until interrupted. When the configuration
// names a log file, output moves to a size-rotated file. Under systemd the
// process reports READY=1 once the observer starts and STOPPING=1 on shutdown.
//
// Example unit:
//
//	[Service]
//	Type=notify
//	ExecStart=/usr/local/bin/storefront watch --session default
package app
