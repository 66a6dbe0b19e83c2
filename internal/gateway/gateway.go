package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/auth"
	"storefront/pkg/tokens"
)

// RequestIDHeader is set on every outbound request that does not carry one.
const RequestIDHeader = "X-Request-ID"

// maxDrainBytes bounds how much of a 401 body is read before the connection
// is reused for the retry.
const maxDrainBytes = 4 << 10

// TokenSource is the part of the auth engine the gateway depends on.
// *auth.Engine implements it.
type TokenSource interface {
	AccessToken() string
	Renew(ctx context.Context, stale string) (string, error)
}

// Config configures a Gateway.
type Config struct {
	// BaseURL resolves relative paths passed to NewRequest.
	BaseURL string

	// Strategy must match the engine's renewal strategy.
	Strategy auth.Strategy

	// Preemptive renews before sending when the token is expired or expiring
	// soon. It only applies to StrategyRedirect, where renewal leaves the
	// current flow.
	Preemptive bool

	// ExpiringSoon is the horizon for the preemptive check.
	ExpiringSoon time.Duration

	// Timeout bounds each request made through Client, retry included.
	// Zero means no timeout.
	Timeout time.Duration
}

// Gateway is an http.RoundTripper that authorizes requests with the current
// access token and recovers from a single 401 by renewing the token and
// retrying once.
type Gateway struct {
	cfg    Config
	tokens TokenSource
	base   http.RoundTripper
	clock  auth.Clock
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTransport sets the underlying transport. Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) {
		g.base = rt
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithClock overrides the clock used for the preemptive expiry check.
func WithClock(c auth.Clock) Option {
	return func(g *Gateway) {
		g.clock = c
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// New creates a gateway over src.
func New(src TokenSource, cfg Config, opts ...Option) *Gateway {
	if cfg.ExpiringSoon <= 0 {
		cfg.ExpiringSoon = tokens.DefaultExpiringSoonHorizon
	}
	g := &Gateway{
		cfg:    cfg,
		tokens: src,
		base:   http.DefaultTransport,
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Client returns an *http.Client that sends every request through g.
func (g *Gateway) Client() *http.Client {
	return &http.Client{Transport: g, Timeout: g.cfg.Timeout}
}

// Do sends req through the gateway.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	return g.Client().Do(req)
}

// NewRequest builds a request for path, which is resolved against BaseURL
// unless it is already absolute.
func (g *Gateway) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target, err := g.resolve(path)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, method, target, body)
}

func (g *Gateway) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if g.cfg.BaseURL == "" {
		return "", fmt.Errorf("relative path %q requires a gateway base URL", path)
	}
	base, err := url.Parse(strings.TrimSuffix(g.cfg.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid gateway base URL %q: %w", g.cfg.BaseURL, err)
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(ref.Path, "/"), RawQuery: ref.RawQuery}).String(), nil
}

// RoundTrip implements http.RoundTripper.
func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	prepared, err := prepare(req)
	if err != nil {
		return nil, err
	}
	requestID := prepared.Header.Get(RequestIDHeader)

	token := g.tokens.AccessToken()
	if token == "" || g.renewBeforeSending(token) {
		renewed, err := g.tokens.Renew(ctx, token)
		if err != nil {
			closeBody(prepared)
			g.logger.Debug("No usable access token", "request_id", requestID, "error", err)
			return nil, &AuthError{Err: err}
		}
		token = renewed
	}

	resp, err := g.send(prepared, token, false)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	drain(resp)
	g.logger.Debug("Access token rejected, renewing", "request_id", requestID, "url", req.URL.Redacted())

	renewed, err := g.tokens.Renew(ctx, token)
	if err != nil {
		return nil, &AuthError{StatusCode: http.StatusUnauthorized, Err: err}
	}
	return g.send(prepared, renewed, true)
}

func (g *Gateway) renewBeforeSending(token string) bool {
	if !g.cfg.Preemptive || g.cfg.Strategy != auth.StrategyRedirect {
		return false
	}
	return tokens.IsExpiringSoon(token, g.cfg.ExpiringSoon, g.clock.Now())
}

// send issues one attempt. The retry takes a fresh body from GetBody.
func (g *Gateway) send(req *http.Request, token string, retry bool) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if retry && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to replay request body: %w", err)
		}
		attempt.Body = body
	}
	attempt.Header.Set("Authorization", "Bearer "+token)
	return g.base.RoundTrip(attempt)
}

// prepare clones req, assigns a request ID and makes the body replayable.
// The caller's request is never modified.
func prepare(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
