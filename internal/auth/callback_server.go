package auth

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"

	"storefront/pkg/tokens"
)

// CallbackTimeout is how long to wait for the OAuth callback.
const CallbackTimeout = 10 * time.Minute

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(sprig.FuncMap()).ParseFS(templateFS, "templates/*.html"))

// CallbackHandler completes an authorization from the full callback URL.
// Engine.HandleCallback satisfies it.
type CallbackHandler func(ctx context.Context, callbackURL *url.URL) (string, error)

// CallbackResult is the outcome of the single callback a server accepts.
type CallbackResult struct {
	AccessToken string
	Err         error
}

// CallbackServer is a temporary loopback HTTP server that receives the
// authorization redirect for a CLI login, hands it to a CallbackHandler and
// shows the user a result page. It accepts exactly one callback.
type CallbackServer struct {
	redirectURI *url.URL
	handler     CallbackHandler
	logger      *slog.Logger

	server   *http.Server
	listener net.Listener
	resultCh chan CallbackResult
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
}

// NewCallbackServer creates a callback server for redirectURI, which must be
// an http URL on a loopback host.
func NewCallbackServer(redirectURI string, handler CallbackHandler, logger *slog.Logger) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect URI %q must use http to be served locally", redirectURI)
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
	default:
		return nil, fmt.Errorf("redirect URI %q is not a loopback address", redirectURI)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CallbackServer{
		redirectURI: u,
		handler:     handler,
		logger:      logger,
		resultCh:    make(chan CallbackResult, 1),
		errorCh:     make(chan error, 1),
	}, nil
}

// Start listens on the redirect URI's port and serves callbacks until Stop
// or ctx is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	port := s.redirectURI.Port()
	if port == "" {
		port = "80"
	}
	addr := net.JoinHostPort("127.0.0.1", port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.redirectURI.Path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Debug("Callback server listening", "addr", listener.Addr().String(), "path", s.redirectURI.Path)
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// WaitForCallback blocks until a callback has been handled, the server fails,
// or ctx is done.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (string, error) {
	select {
	case result := <-s.resultCh:
		return result.AccessToken, result.Err
	case err := <-s.errorCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	if query.Get("code") == "" && query.Get("error") == "" {
		http.Error(w, "Not an authorization callback", http.StatusBadRequest)
		return
	}

	handled := false
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	callbackURL := *s.redirectURI
	callbackURL.RawQuery = r.URL.RawQuery

	accessToken, err := s.handler(r.Context(), &callbackURL)

	page := "callback_success.html"
	data := map[string]string{}
	status := http.StatusOK
	if err != nil {
		page = "callback_error.html"
		status = http.StatusBadRequest
		data["Error"] = callbackErrorCode(err)
		data["Description"] = err.Error()
	} else if info, infoErr := tokens.UserInfoFromToken(accessToken); infoErr == nil {
		data["Name"] = info.Name
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if execErr := pages.ExecuteTemplate(w, page, data); execErr != nil {
		s.logger.Error("Failed to render callback page", "error", execErr)
	}

	select {
	case s.resultCh <- CallbackResult{AccessToken: accessToken, Err: err}:
	default:
	}

	// Give the browser time to receive the page before shutting down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// callbackErrorCode names err for the error page.
func callbackErrorCode(err error) string {
	var callbackErr *CallbackError
	var exchangeErr *TokenExchangeError
	switch {
	case errors.As(err, &callbackErr):
		return callbackErr.Code
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrMissingVerifier):
		return "missing_verifier"
	case errors.As(err, &exchangeErr):
		return "token_exchange_failed"
	default:
		return ""
	}
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}
