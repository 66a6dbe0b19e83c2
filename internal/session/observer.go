package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/internal/auth"
	"storefront/internal/credstore"
	"storefront/pkg/tokens"
)

// DefaultCheckInterval is how often Run checks the access token expiry.
const DefaultCheckInterval = time.Minute

// Snapshot is the auth state seen by the rest of the application.
type Snapshot struct {
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	IsLoading       bool
}

// Engine is the part of the auth engine the observer drives.
// *auth.Engine implements it.
type Engine interface {
	Renew(ctx context.Context, stale string) (string, error)
	State() auth.AuthState
}

// Config configures an Observer.
type Config struct {
	// CheckInterval is the period of the expiry check. Defaults to one minute.
	CheckInterval time.Duration

	// ExpiringSoon is the horizon within which a token is renewed proactively.
	ExpiringSoon time.Duration

	// EntryURL is opened after logout. Empty disables navigation.
	EntryURL string
}

// Observer publishes auth state derived from the credential store and keeps
// the session alive by renewing the access token before it expires, whether
// or not requests are being made.
type Observer struct {
	store     *credstore.Store
	engine    Engine
	cfg       Config
	navigator auth.Navigator
	clock     auth.Clock
	logger    *slog.Logger

	loaded atomic.Bool

	mu     sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	closed bool

	unsubscribeStore func()
}

// Option configures an Observer.
type Option func(*Observer)

// WithNavigator sets how the entry URL is opened after logout.
func WithNavigator(n auth.Navigator) Option {
	return func(o *Observer) {
		o.navigator = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(c auth.Clock) Option {
	return func(o *Observer) {
		o.clock = c
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewObserver creates an observer of store that renews through engine.
// Close releases its store subscription.
func NewObserver(store *credstore.Store, engine Engine, cfg Config, opts ...Option) *Observer {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.ExpiringSoon <= 0 {
		cfg.ExpiringSoon = tokens.DefaultExpiringSoonHorizon
	}

	o := &Observer{
		store:     store,
		engine:    engine,
		cfg:       cfg,
		navigator: auth.BrowserNavigator{},
		clock:     systemClock{},
		logger:    slog.Default(),
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.unsubscribeStore = store.Subscribe(o.publish)
	return o
}

// State returns the current snapshot, recomputed from the store.
func (o *Observer) State() Snapshot {
	record := o.store.Snapshot()
	return Snapshot{
		AccessToken:     record[credstore.KeyAccessToken],
		RefreshToken:    record[credstore.KeyRefreshToken],
		IsAuthenticated: record[credstore.KeyAccessToken] != "",
		IsLoading:       !o.loaded.Load() || o.engine.State() == auth.AuthStateRenewing,
	}
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow receivers only see the most recent snapshot. The returned
// function unsubscribes and closes the channel.
func (o *Observer) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if _, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(ch)
			}
		})
	}
}

func (o *Observer) publish() {
	snap := o.State()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.subs {
		// Replace an unread snapshot with the newer one.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Check renews the access token when it is expired or expiring soon. It does
// nothing when the session holds no tokens at all. Renewal errors are logged
// and returned; terminal ones have already cleared the session.
func (o *Observer) Check(ctx context.Context) error {
	defer o.markLoaded()

	record := o.store.Snapshot()
	accessToken := record[credstore.KeyAccessToken]
	if accessToken == "" && record[credstore.KeyRefreshToken] == "" {
		return nil
	}
	if accessToken != "" && !tokens.IsExpiringSoon(accessToken, o.cfg.ExpiringSoon, o.clock.Now()) {
		return nil
	}

	o.logger.Debug("Access token expiring, renewing proactively",
		"remaining", tokens.TimeUntilExpiry(accessToken, o.clock.Now()).Round(time.Second).String())

	_, err := o.engine.Renew(ctx, accessToken)
	o.publish()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrAuthorizationPending):
		o.logger.Debug("Re-authorization still waiting for its callback")
	case errors.Is(err, auth.ErrRedirecting):
		o.logger.Info("Re-authorization started")
	case errors.Is(err, auth.ErrRenewalThrottled):
		o.logger.Debug("Proactive renewal throttled")
	case auth.IsTerminal(err):
		o.logger.Info("Session ended, login required", "error", err)
	default:
		o.logger.Warn("Proactive renewal failed, will retry", "error", err)
	}
	return err
}

func (o *Observer) markLoaded() {
	if !o.loaded.Swap(true) {
		o.publish()
	}
}

// Run checks expiry once, then on every interval, and follows writes made to
// the session by other processes when the backend supports it. It blocks
// until ctx is done and stops every timer and watcher before returning.
func (o *Observer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.store.Watch(ctx, func() {
			o.logger.Debug("Session changed by another process")
		})
		if err != nil && !errors.Is(err, credstore.ErrWatchUnsupported) && ctx.Err() == nil {
			return fmt.Errorf("failed to watch credential store: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		_ = o.Check(ctx)

		ticker := time.NewTicker(o.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				_ = o.Check(ctx)
			}
		}
	})

	return g.Wait()
}

// Logout clears the session, publishes the empty state and opens the entry
// URL. Logging out of an empty session does nothing.
func (o *Observer) Logout(ctx context.Context) error {
	if len(o.store.Snapshot()) == 0 {
		return nil
	}
	if err := o.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	o.logger.Info("Logged out")

	if o.cfg.EntryURL == "" {
		return nil
	}
	if err := o.navigator.Navigate(ctx, o.cfg.EntryURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", o.cfg.EntryURL, err)
	}
	return nil
}

// Close unsubscribes from the store and closes every subscriber channel.
func (o *Observer) Close() {
	o.unsubscribeStore()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}
