package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// ErrMissingRefreshToken is returned by Refresh when called without a refresh token.
var ErrMissingRefreshToken = errors.New("refresh token is empty")

// Client handles the OAuth 2.1 protocol operations of a public client:
// building authorization URLs, exchanging codes and refreshing tokens.
type Client struct {
	config     Config
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new OAuth client for cfg.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.oauth = &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthorizeEndpoint(),
			TokenURL: cfg.TokenEndpoint(),
			// Public client: client_id travels in the form body, never as Basic auth.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return c
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// AuthorizationURL builds the authorization request URL for state and pkce.
// extra adds parameters such as prompt=none.
func (c *Client) AuthorizationURL(state string, pkce *PKCEChallenge, extra map[string]string) string {
	opts := make([]oauth2.AuthCodeOption, 0, 2+len(extra))
	if pkce != nil {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", pkce.CodeChallengeMethod),
		)
	}
	for k, v := range extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode exchanges an authorization code and its PKCE verifier for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (*Token, error) {
	tok, err := c.oauth.Exchange(c.withHTTPClient(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		err = translateError(err)
		c.logger.Debug("Authorization code exchange failed",
			"token_endpoint", c.oauth.Endpoint.TokenURL,
			"status", StatusCode(err),
			"error", err)
		return nil, fmt.Errorf("authorization code exchange failed: %w", err)
	}

	return tokenFromOAuth2(tok), nil
}

// RefreshToken obtains a new access token using a refresh token. When the
// server does not rotate the refresh token the old one is carried over.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	// An expired token with only a refresh token forces the source to call the endpoint.
	src := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		err = translateError(err)
		c.logger.Debug("Token refresh failed",
			"token_endpoint", c.oauth.Endpoint.TokenURL,
			"status", StatusCode(err),
			"error", err)
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	return tokenFromOAuth2(tok), nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
