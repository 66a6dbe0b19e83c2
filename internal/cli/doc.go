// Package cli provides the presentation layer of the storefront command.
//
// It turns session state and errors into terminal output:
//
//   - Printer renders session status and identity as plain tables, JSON or YAML
//   - PlainTableWriter draws kubectl-style tables without borders
//   - Spin shows a progress spinner while waiting on the browser or the network
//   - ClassifyAuthError maps auth engine errors to AuthRequiredError,
//     AuthExpiredError and AuthFailedError, whose messages name the command to run
//   - ClassifyConnectionError explains TLS, DNS, timeout and network failures
//
// Progress output goes to stderr and is suppressed with --quiet. Results go
// to stdout so they can be piped.
package cli
