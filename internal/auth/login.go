package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/credstore"
)

// LoginWithCallbackServer runs a complete interactive login for a CLI: it
// serves the redirect URI on the loopback interface, starts the
// authorization and waits until the callback has been exchanged for tokens.
func (e *Engine) LoginWithCallbackServer(ctx context.Context) (string, error) {
	return e.serveCallback(ctx, CallbackTimeout, e.Login)
}

// RenewWithCallbackServer runs a silent re-authorization (prompt=none) the
// same way and returns the new access token. A callback carrying
// login_required means the user's session at the authorization server is
// gone: the store is cleared and the returned *CallbackError is terminal.
func (e *Engine) RenewWithCallbackServer(ctx context.Context) (string, error) {
	timeout := e.cfg.ReauthTimeout
	if timeout <= 0 {
		timeout = DefaultReauthTimeout
	}

	accessToken, err := e.serveCallback(ctx, timeout, e.RedirectToReauth)
	var callbackErr *CallbackError
	if errors.As(err, &callbackErr) {
		e.logger.Info("Silent re-authorization refused, clearing session", "error", callbackErr.Code)
		if clearErr := e.store.Clear(); clearErr != nil {
			e.logger.Error("Failed to clear refused session", "error", clearErr)
		}
	}
	return accessToken, err
}

// reauthorize is the redirect-strategy renewal used by Renew.
func (e *Engine) reauthorize(ctx context.Context) (string, error) {
	if e.cfg.ServeCallback {
		return e.RenewWithCallbackServer(ctx)
	}

	if _, pending := e.store.Get(credstore.KeyCodeVerifier); pending {
		e.logger.Debug("Re-authorization already pending, not navigating again")
		return "", ErrAuthorizationPending
	}
	if err := e.RedirectToReauth(ctx); err != nil {
		return "", err
	}
	return "", ErrRedirecting
}

// serveCallback listens on the redirect URI, runs start and waits for the
// callback it produces. Failing to listen while a verifier is stored means
// another process is already waiting for a callback.
func (e *Engine) serveCallback(ctx context.Context, timeout time.Duration, start func(context.Context) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	server, err := NewCallbackServer(e.cfg.OAuth.RedirectURI, e.HandleCallback, e.logger)
	if err != nil {
		return "", err
	}
	if err := server.Start(ctx); err != nil {
		if _, pending := e.store.Get(credstore.KeyCodeVerifier); pending {
			return "", fmt.Errorf("%w: %w", ErrAuthorizationPending, err)
		}
		return "", err
	}
	defer server.Stop()

	if err := start(ctx); err != nil {
		return "", err
	}

	accessToken, err := server.WaitForCallback(ctx)
	if err != nil {
		if ctx.Err() != nil {
			e.discardPending()
			return "", fmt.Errorf("timed out waiting for the authorization callback: %w", err)
		}
		return "", err
	}
	return accessToken, nil
}
