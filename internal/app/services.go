package app

import (
	"fmt"
	"net/http"

	"storefront/internal/auth"
	"storefront/internal/config"
	"storefront/internal/credstore"
	"storefront/internal/gateway"
	"storefront/internal/session"
	"storefront/pkg/logging"
	"storefront/pkg/oauth"
)

// Services holds the components of one storefront session.
//
// They are built in dependency order:
//  1. Store: the session-scoped credential store
//  2. Engine: the auth protocol engine writing to the store
//  3. Gateway: authenticated requests renewing through the engine
//  4. Observer: the auth state view over the store and engine
type Services struct {
	Store    *credstore.Store
	Engine   *auth.Engine
	Gateway  *gateway.Gateway
	Observer *session.Observer
}

type serviceOptions struct {
	navigator  auth.Navigator
	httpClient *http.Client
	transport  http.RoundTripper
	clock      auth.Clock
}

// ServiceOption customizes InitializeServices.
type ServiceOption func(*serviceOptions)

// WithNavigator replaces the system browser as the redirect target.
func WithNavigator(n auth.Navigator) ServiceOption {
	return func(o *serviceOptions) { o.navigator = n }
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(o *serviceOptions) { o.httpClient = c }
}

// WithTransport sets the round tripper the gateway sends requests with.
func WithTransport(rt http.RoundTripper) ServiceOption {
	return func(o *serviceOptions) { o.transport = rt }
}

// WithClock sets the time source of the engine, gateway and observer.
func WithClock(c auth.Clock) ServiceOption {
	return func(o *serviceOptions) { o.clock = c }
}

// InitializeServices creates the session components described by cfg.
func InitializeServices(cfg *config.StorefrontConfig, opts ...ServiceOption) (*Services, error) {
	o := serviceOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	strategy, err := auth.ParseStrategy(cfg.Auth.Renewal)
	if err != nil {
		return nil, err
	}

	store, err := credstore.Open(credstore.Options{
		Storage: cfg.Session.Storage,
		Session: cfg.Session.Name,
		Dir:     cfg.Session.Dir,
	}, credstore.WithLogger(logging.Logger("CredentialStore")))
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	logging.Debug("Services", "Opened %s credential store for session %q", store.BackendName(), cfg.Session.Name)

	engineOpts := []auth.EngineOption{auth.WithLogger(logging.Logger("AuthEngine"))}
	if o.navigator != nil {
		engineOpts = append(engineOpts, auth.WithNavigator(o.navigator))
	}
	if o.httpClient != nil {
		engineOpts = append(engineOpts, auth.WithHTTPClient(o.httpClient))
	}
	if o.clock != nil {
		engineOpts = append(engineOpts, auth.WithClock(o.clock))
	}

	engine, err := auth.NewEngine(auth.EngineConfig{
		OAuth: oauth.Config{
			BaseURL:     cfg.Auth.BaseURL,
			ClientID:    cfg.Auth.ClientID,
			RedirectURI: cfg.Auth.RedirectURI,
			Scopes:      cfg.Auth.Scopes,
		},
		Strategy:       strategy,
		VerifierLength: cfg.Auth.VerifierLength,
		// The CLI is its own user agent endpoint: silent re-authorizations
		// come back to the loopback redirect URI this process serves.
		ServeCallback: true,
	}, store, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth engine: %w", err)
	}

	transport := o.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	gatewayOpts := []gateway.Option{
		gateway.WithLogger(logging.Logger("Gateway")),
		gateway.WithTransport(transport),
	}
	if o.clock != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithClock(o.clock))
	}
	gw := gateway.New(engine, gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		Strategy:     strategy,
		Preemptive:   cfg.Gateway.Preemptive,
		ExpiringSoon: cfg.Session.ExpiringSoon,
		Timeout:      cfg.Gateway.Timeout,
	}, gatewayOpts...)

	observerOpts := []session.Option{session.WithLogger(logging.Logger("Session"))}
	if o.navigator != nil {
		observerOpts = append(observerOpts, session.WithNavigator(o.navigator))
	}
	if o.clock != nil {
		observerOpts = append(observerOpts, session.WithClock(o.clock))
	}
	observer := session.NewObserver(store, engine, session.Config{
		CheckInterval: cfg.Session.CheckInterval,
		ExpiringSoon:  cfg.Session.ExpiringSoon,
		EntryURL:      cfg.App.EntryURL,
	}, observerOpts...)

	return &Services{
		Store:    store,
		Engine:   engine,
		Gateway:  gw,
		Observer: observer,
	}, nil
}

// Close releases the observer's store subscription.
func (s *Services) Close() {
	if s.Observer != nil {
		s.Observer.Close()
	}
}
