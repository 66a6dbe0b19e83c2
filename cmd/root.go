package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/auth"
	"storefront/internal/cli"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// globalFlags holds the persistent flags shared by all commands.
var globalFlags cli.CommandFlags

// serviceOptions are appended to the options of every application built by
// a command. Tests use them to replace the browser and the clock.
var serviceOptions []app.ServiceOption

// rootCmd represents the base command for the storefront application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Sign in to the storefront and keep your session alive",
	Long: `storefront signs you in to the storefront authorization server with
OAuth2 Authorization Code + PKCE, keeps the access token fresh for the
lifetime of a session, and sends authenticated requests to the storefront
gateway on your behalf.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cli.ValidateOutputFormat(globalFlags.OutputFormat)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "storefront version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// newApplication bootstraps the session selected by the global flags. The
// system browser announces itself on the command's stderr.
func newApplication(cmd *cobra.Command, opts ...app.ServiceOption) (*app.Application, error) {
	cfg := app.NewConfig(globalFlags.Debug, globalFlags.Quiet, globalFlags.ConfigPath, globalFlags.Session)

	all := []app.ServiceOption{app.WithNavigator(auth.BrowserNavigator{Out: cmd.ErrOrStderr()})}
	all = append(all, opts...)
	all = append(all, serviceOptions...)
	return app.NewApplication(cfg, all...)
}

func newPrinter(cmd *cobra.Command) *cli.Printer {
	return cli.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), &globalFlags)
}

func init() {
	cli.RegisterCommonFlags(rootCmd, &globalFlags)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
