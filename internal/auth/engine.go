package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"storefront/internal/credstore"
	"storefront/pkg/oauth"
	"storefront/pkg/tokens"
)

// Default renewal throttle: a burst of five, then one renewal per second.
const (
	DefaultRenewalInterval = time.Second
	DefaultRenewalBurst    = 5
)

// DefaultReauthTimeout bounds a served silent re-authorization. prompt=none
// never shows a login page, so the callback arrives quickly or not at all.
const DefaultReauthTimeout = 2 * time.Minute

// EngineConfig holds the static configuration of an Engine.
type EngineConfig struct {
	// OAuth describes the authorization server and this client.
	OAuth oauth.Config

	// Strategy selects how expired access tokens are replaced.
	Strategy Strategy

	// VerifierLength is the PKCE verifier length; 0 means the default.
	VerifierLength int

	// ServeCallback makes redirect-strategy renewals listen on the loopback
	// redirect URI and exchange the silent callback themselves. Without it
	// Renew only navigates and the embedding application must route the
	// callback to HandleCallback.
	ServeCallback bool

	// ReauthTimeout bounds a served re-authorization; 0 means
	// DefaultReauthTimeout.
	ReauthTimeout time.Duration
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Engine drives the Authorization Code + PKCE flow and owns every token
// renewal for a session. All state lives in the credential store; the engine
// only adds in-process coordination so concurrent renewals collapse into one
// token request.
type Engine struct {
	cfg       EngineConfig
	client    *oauth.Client
	store     *credstore.Store
	navigator Navigator
	clock     Clock
	logger    *slog.Logger

	renewals singleflight.Group
	limiter  *rate.Limiter
	renewing atomic.Bool
}

// engineOptions collects options before the OAuth client is built.
type engineOptions struct {
	navigator  Navigator
	httpClient *http.Client
	logger     *slog.Logger
	clock      Clock
	limit      rate.Limit
	burst      int
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

// WithNavigator sets how authorization URLs are opened.
func WithNavigator(n Navigator) EngineOption {
	return func(o *engineOptions) {
		o.navigator = n
	}
}

// WithHTTPClient sets the HTTP client used for token requests.
func WithHTTPClient(c *http.Client) EngineOption {
	return func(o *engineOptions) {
		o.httpClient = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithClock overrides the clock used for local expiry checks.
func WithClock(c Clock) EngineOption {
	return func(o *engineOptions) {
		o.clock = c
	}
}

// WithRenewalLimit sets the renewal rate. rate.Inf disables throttling.
func WithRenewalLimit(limit rate.Limit, burst int) EngineOption {
	return func(o *engineOptions) {
		o.limit = limit
		o.burst = burst
	}
}

// NewEngine creates an engine for cfg over store.
func NewEngine(cfg EngineConfig, store *credstore.Store, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if cfg.OAuth.BaseURL == "" || cfg.OAuth.ClientID == "" || cfg.OAuth.RedirectURI == "" {
		return nil, errors.New("oauth base URL, client ID and redirect URI are required")
	}
	if err := oauth.ValidateVerifierLength(cfg.VerifierLength); err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	cfg.Strategy = strategy

	o := engineOptions{
		navigator: BrowserNavigator{},
		logger:    slog.Default(),
		clock:     realClock{},
		limit:     rate.Every(DefaultRenewalInterval),
		burst:     DefaultRenewalBurst,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []oauth.ClientOption{oauth.WithLogger(o.logger)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, oauth.WithHTTPClient(o.httpClient))
	}

	return &Engine{
		cfg:       cfg,
		client:    oauth.NewClient(cfg.OAuth, clientOpts...),
		store:     store,
		navigator: o.navigator,
		clock:     o.clock,
		logger:    o.logger,
		limiter:   rate.NewLimiter(o.limit, o.burst),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Store returns the credential store the engine writes to.
func (e *Engine) Store() *credstore.Store {
	return e.store
}

// State derives the current auth state.
func (e *Engine) State() AuthState {
	if e.renewing.Load() {
		return AuthStateRenewing
	}
	if _, ok := e.store.Get(credstore.KeyAccessToken); ok {
		return AuthStateAuthenticated
	}
	if _, ok := e.store.Get(credstore.KeyCodeVerifier); ok {
		return AuthStateAwaitingCallback
	}
	return AuthStateUnauthenticated
}

// AccessToken returns the stored access token or "".
func (e *Engine) AccessToken() string {
	return e.store.Value(credstore.KeyAccessToken)
}

// Login starts an interactive authorization: it stores a fresh PKCE verifier
// and state, then navigates to the authorization endpoint.
func (e *Engine) Login(ctx context.Context) error {
	return e.authorize(ctx, nil)
}

// RedirectToReauth starts a silent re-authorization with prompt=none. It
// succeeds only while the user's session at the authorization server is
// still alive; otherwise the callback carries error=login_required.
func (e *Engine) RedirectToReauth(ctx context.Context) error {
	return e.authorize(ctx, map[string]string{"prompt": "none"})
}

// AuthorizationURL prepares a pending authorization exactly like Login but
// returns the URL instead of navigating to it.
func (e *Engine) AuthorizationURL(extra map[string]string) (string, error) {
	verifier, err := oauth.GenerateCodeVerifier(e.cfg.VerifierLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}
	state, err := oauth.GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	// The verifier must be durable before the user agent leaves.
	if err := e.store.SetMany(map[credstore.Key]string{
		credstore.KeyCodeVerifier: verifier,
		credstore.KeyState:        state,
	}); err != nil {
		return "", fmt.Errorf("failed to store PKCE verifier: %w", err)
	}

	pkce := &oauth.PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       oauth.GenerateCodeChallenge(verifier),
		CodeChallengeMethod: oauth.CodeChallengeMethodS256,
	}
	return e.client.AuthorizationURL(state, pkce, extra), nil
}

func (e *Engine) authorize(ctx context.Context, extra map[string]string) error {
	authURL, err := e.AuthorizationURL(extra)
	if err != nil {
		return err
	}

	e.logger.Debug("Starting authorization",
		"authorize_endpoint", e.cfg.OAuth.AuthorizeEndpoint(),
		"silent", extra["prompt"] == "none",
	)

	if err := e.navigator.Navigate(ctx, authURL); err != nil {
		return fmt.Errorf("failed to navigate to authorization endpoint: %w", err)
	}
	return nil
}

// HandleCallback completes an authorization from the redirect URL. A URL
// without code or error is not a callback and returns ("", nil) untouched.
// On success every token is stored in one write together with the removal
// of the verifier and state, and the new access token is returned.
func (e *Engine) HandleCallback(ctx context.Context, callbackURL *url.URL) (string, error) {
	query := callbackURL.Query()
	code := query.Get("code")
	errCode := query.Get("error")
	if code == "" && errCode == "" {
		return "", nil
	}

	if errCode != "" {
		e.discardPending()
		e.logger.Debug("Authorization server returned an error",
			"error", errCode,
			"error_description", query.Get("error_description"),
		)
		return "", &CallbackError{Code: errCode, Description: query.Get("error_description")}
	}

	verifier, ok := e.store.Get(credstore.KeyCodeVerifier)
	if !ok {
		return "", ErrMissingVerifier
	}
	if expected, ok := e.store.Get(credstore.KeyState); ok && query.Get("state") != expected {
		e.discardPending()
		return "", ErrStateMismatch
	}

	tok, err := e.client.ExchangeCode(ctx, code, verifier)
	if err != nil {
		// An authorization code is single use, so the verifier is spent too.
		e.discardPending()
		return "", &TokenExchangeError{StatusCode: oauth.StatusCode(err), Err: err}
	}

	values := map[credstore.Key]string{
		credstore.KeyAccessToken:  tok.AccessToken,
		credstore.KeyIDToken:      tok.IDToken,
		credstore.KeyCodeVerifier: "",
		credstore.KeyState:        "",
	}
	if tok.RefreshToken != "" {
		values[credstore.KeyRefreshToken] = tok.RefreshToken
	}
	if err := e.store.SetMany(values); err != nil {
		return "", fmt.Errorf("failed to store tokens: %w", err)
	}

	e.logger.Info("Authorization completed", "has_refresh_token", tok.RefreshToken != "")
	return tok.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new access token. A
// rejected refresh token (400 or 401) clears the store and returns a
// terminal *RefreshError; other failures leave the store untouched.
//
// The session may be shared with other processes, so the store is reloaded
// before the grant. A rejection caused by another process having rotated
// the refresh token in the meantime returns that process's access token
// instead of ending the session.
func (e *Engine) Refresh(ctx context.Context) (string, error) {
	e.reload()
	refreshToken, ok := e.store.Get(credstore.KeyRefreshToken)
	if !ok {
		return "", ErrNoRefreshToken
	}

	if refreshTokenExpired(refreshToken, e.clock.Now()) {
		e.logger.Info("Refresh token expired, clearing session")
		if err := e.store.Clear(); err != nil {
			return "", fmt.Errorf("failed to clear expired session: %w", err)
		}
		return "", ErrRefreshTokenExpired
	}

	tok, err := e.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		var tokenErr *oauth.TokenError
		if errors.As(err, &tokenErr) && tokenErr.IsClientRejection() {
			e.reload()
			if current := e.store.Value(credstore.KeyRefreshToken); current != "" && current != refreshToken {
				if accessToken := e.AccessToken(); accessToken != "" {
					e.logger.Info("Refresh token was rotated by another process, using its tokens")
					return accessToken, nil
				}
			}
			e.logger.Info("Refresh token rejected, clearing session",
				"status", tokenErr.StatusCode,
				"error", tokenErr.ErrorCode,
			)
			if clearErr := e.store.Clear(); clearErr != nil {
				e.logger.Error("Failed to clear rejected session", "error", clearErr)
			}
			return "", &RefreshError{StatusCode: tokenErr.StatusCode, Terminal: true, Err: err}
		}
		e.logger.Warn("Token refresh failed", "status", oauth.StatusCode(err), "error", err)
		return "", &RefreshError{StatusCode: oauth.StatusCode(err), Err: err}
	}

	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	values := map[credstore.Key]string{
		credstore.KeyAccessToken:  tok.AccessToken,
		credstore.KeyRefreshToken: tok.RefreshToken,
	}
	if tok.IDToken != "" {
		values[credstore.KeyIDToken] = tok.IDToken
	}
	if err := e.store.SetMany(values); err != nil {
		return "", fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	e.logger.Debug("Access token refreshed", "rotated", tok.RefreshToken != refreshToken)
	return tok.AccessToken, nil
}

// reload picks up tokens another process wrote to the same session.
func (e *Engine) reload() {
	if err := e.store.Reload(); err != nil {
		e.logger.Warn("Failed to reload credentials", "error", err)
	}
}

// refreshTokenExpired judges only JWT refresh tokens that carry exp. Opaque
// tokens are left for the server to decide.
func refreshTokenExpired(token string, now time.Time) bool {
	claims, ok := tokens.DecodeClaims(token)
	if !ok {
		return false
	}
	exp, ok := claims.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(exp)
}

// Renew replaces the access token the caller saw rejected. It is the only
// renewal entry point: concurrent calls share one token request, and a call
// whose stale token has already been replaced returns the current token
// without any network traffic.
//
// Under StrategyRedirect a silent re-authorization is started. With
// ServeCallback the call waits for its callback and returns the new token;
// otherwise it returns ErrRedirecting once the navigation is issued.
func (e *Engine) Renew(ctx context.Context, stale string) (string, error) {
	if current := e.AccessToken(); current != "" && current != stale {
		return current, nil
	}

	result, err, shared := e.renewals.Do("renew", func() (any, error) {
		e.reload()
		if current := e.AccessToken(); current != "" && current != stale {
			return current, nil
		}
		if e.cfg.Strategy == StrategyRefreshToken {
			if _, ok := e.store.Get(credstore.KeyRefreshToken); !ok {
				return "", ErrAuthRequired
			}
		}
		if !e.limiter.Allow() {
			return "", ErrRenewalThrottled
		}

		e.renewing.Store(true)
		defer e.renewing.Store(false)

		if e.cfg.Strategy == StrategyRedirect {
			// A served re-authorization holds the callback port, so it
			// ends with the caller that started it.
			return e.reauthorize(ctx)
		}

		// Callers waiting on this flight must not fail because the
		// first caller went away.
		return e.Refresh(context.WithoutCancel(ctx))
	})
	if shared {
		e.logger.Debug("Joined in-flight token renewal")
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Logout removes every credential of the session.
func (e *Engine) Logout() error {
	if err := e.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	e.logger.Info("Logged out")
	return nil
}

// discardPending removes the verifier and state of an abandoned authorization.
func (e *Engine) discardPending() {
	if err := e.store.Delete(credstore.KeyCodeVerifier, credstore.KeyState); err != nil {
		e.logger.Warn("Failed to discard pending authorization", "error", err)
	}
}
