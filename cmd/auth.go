package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/auth"
	"storefront/internal/cli"
	"storefront/pkg/tokens"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the storefront session",
	Long: `Manage authentication against the storefront authorization server.

Examples:
  storefront auth login                # Sign in through the browser
  storefront auth status               # Show the session state
  storefront auth refresh              # Renew the access token now
  storefront auth whoami               # Show the signed-in identity
  storefront auth logout               # Clear the stored session
  storefront auth status --session ci  # Work with another named session`,
}

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser",
	Long: `Sign in with OAuth2 Authorization Code + PKCE.

A local callback server listens on the configured redirect URI while the
browser completes the sign-in. The resulting tokens are stored in the
selected session.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force token refresh",
	Long: `Exchange the stored refresh token for a new access token.

A rejected refresh token ends the session; sign in again with
'storefront auth login'.`,
	Args: cobra.NoArgs,
	RunE: runAuthRefresh,
}

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show current authenticated identity",
	Args:  cobra.NoArgs,
	RunE:  runAuthWhoami,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authWhoamiCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	stop := func(bool) {}
	browser := auth.BrowserNavigator{Out: cmd.ErrOrStderr()}
	navigator := auth.NavigatorFunc(func(ctx context.Context, url string) error {
		err := browser.Navigate(ctx, url)
		stop = p.Spin("Waiting for sign-in in your browser...")
		return err
	})

	application, err := newApplication(cmd, app.WithNavigator(navigator))
	if err != nil {
		return err
	}
	defer application.Close()
	session := application.Settings().Session.Name

	accessToken, err := application.Services().Engine.LoginWithCallbackServer(cmd.Context())
	stop(err == nil)
	if err != nil {
		return &cli.AuthFailedError{Session: session, Reason: err}
	}

	identity := session
	if info, err := tokens.UserInfoFromToken(accessToken); err == nil && info.Email != "" {
		identity = info.Email
	}
	p.Progressf("%s\n", cli.FormatSuccess(fmt.Sprintf("Signed in as %s", identity)))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	p := newPrinter(cmd)
	services := application.Services()
	session := application.Settings().Session.Name

	if len(services.Store.Snapshot()) == 0 {
		p.Progressf("No stored credentials for session %q.\n", session)
		return nil
	}
	if err := services.Observer.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	p.Progressf("%s\n", cli.FormatSuccess(fmt.Sprintf("Logged out of session %q", session)))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	return newPrinter(cmd).PrintSession(describe(application))
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	p := newPrinter(cmd)
	session := application.Settings().Session.Name

	stop := p.Spin("Refreshing access token...")
	accessToken, err := application.Services().Engine.Refresh(cmd.Context())
	stop(err == nil)
	if err != nil {
		return cli.ClassifyAuthError(err, session)
	}

	msg := "Token refreshed"
	if exp, ok := tokens.ExpiresAt(accessToken); ok {
		msg += fmt.Sprintf(", expires %s", cli.FormatExpiry(exp, time.Now()))
	}
	p.Progressf("%s\n", cli.FormatSuccess(msg))
	return nil
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	view := describe(application)
	if !view.Authenticated() {
		return &cli.AuthRequiredError{Session: view.Session}
	}
	return newPrinter(cmd).PrintIdentity(view)
}

func describe(application *app.Application) cli.SessionView {
	services := application.Services()
	return cli.DescribeSession(
		application.Settings().Session.Name,
		services.Store.BackendName(),
		services.Engine.State(),
		services.Store.Snapshot(),
	)
}
