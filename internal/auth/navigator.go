package auth

import (
	"context"
	"fmt"
	"io"

	"github.com/skratchdot/open-golang/open"
)

// Navigator sends the user agent to an authorization URL. Navigation leaves
// the current flow; the result arrives later through HandleCallback.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, url string) error

// Navigate calls f(ctx, url).
func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

// BrowserNavigator opens URLs in the system browser and prints them to Out
// so they can be copied when no browser is available.
type BrowserNavigator struct {
	Out io.Writer
}

// Navigate opens url in the default browser. When no browser can be
// started and Out is set, the printed URL is enough for the user to continue
// by hand, so the failure is only reported there.
func (b BrowserNavigator) Navigate(ctx context.Context, url string) error {
	if b.Out != nil {
		fmt.Fprintf(b.Out, "Opening browser for authentication:\n  %s\n", url)
	}
	err := open.Start(url)
	if err == nil {
		return nil
	}
	if b.Out == nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	fmt.Fprintf(b.Out, "Could not open a browser (%v); open the URL above manually.\n", err)
	return nil
}
