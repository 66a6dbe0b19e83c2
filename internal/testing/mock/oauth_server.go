package mock

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// OAuthServerConfig configures the mock authorization server.
type OAuthServerConfig struct {
	// ClientID is the expected public client id. Defaults to "fp_frontend".
	ClientID string

	// AccessTokenLifetime is the exp offset of issued access tokens.
	AccessTokenLifetime time.Duration

	// RefreshTokenLifetime is the exp offset of issued refresh tokens.
	RefreshTokenLifetime time.Duration

	// Subject, Email and Name populate the identity claims.
	Subject string
	Email   string
	Name    string

	// Authorities is written to the authorities claim when non-empty.
	Authorities []string

	// OpaqueRefreshTokens issues random strings instead of JWT refresh tokens.
	OpaqueRefreshTokens bool

	// NoRotation keeps the original refresh token on refresh.
	NoRotation bool

	// Clock is the clock to use for time operations (defaults to RealClock).
	Clock Clock

	// Debug enables debug logging
	Debug bool
}

// OAuthServer is a mock OAuth 2.1 authorization server exposing
// /oauth2/authorize and /oauth2/token. Authorization requests are approved
// automatically by redirecting to redirect_uri with a code.
type OAuthServer struct {
	config     OAuthServerConfig
	httpServer *http.Server
	listener   net.Listener
	port       int
	running    bool
	mu         sync.RWMutex

	signingKey []byte
	clock      Clock

	// sessionActive models the user's login at the authorization server;
	// prompt=none only succeeds while it is true.
	sessionActive bool

	authCodes     map[string]*authCodeEntry
	accessTokens  map[string]time.Time
	refreshTokens map[string]bool

	// failNext holds forced statuses for the next token requests by grant type.
	failNext     map[string][]int
	refreshDelay time.Duration

	tokenCalls    atomic.Int32
	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32
}

type authCodeEntry struct {
	ClientID        string
	RedirectURI     string
	Scope           string
	CodeChallenge   string
	ChallengeMethod string
}

// TokenResponse is the OAuth token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// NewOAuthServer creates a new mock authorization server.
func NewOAuthServer(config OAuthServerConfig) *OAuthServer {
	if config.ClientID == "" {
		config.ClientID = "fp_frontend"
	}
	if config.AccessTokenLifetime == 0 {
		config.AccessTokenLifetime = 5 * time.Minute
	}
	if config.RefreshTokenLifetime == 0 {
		config.RefreshTokenLifetime = 24 * time.Hour
	}
	if config.Subject == "" {
		config.Subject = "test-user-123"
	}
	if config.Email == "" {
		config.Email = "test@example.com"
	}
	if config.Name == "" {
		config.Name = "Test User"
	}

	clock := config.Clock
	if clock == nil {
		clock = RealClock{}
	}

	return &OAuthServer{
		config:        config,
		signingKey:    []byte(generateOpaqueToken()),
		clock:         clock,
		sessionActive: true,
		authCodes:     make(map[string]*authCodeEntry),
		accessTokens:  make(map[string]time.Time),
		refreshTokens: make(map[string]bool),
		failNext:      make(map[string][]int),
	}
}

// Handler returns the server's routes, for use with httptest.
func (s *OAuthServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/oauth2/authorize", s.handleAuthorize).Methods(http.MethodGet)
	r.HandleFunc("/oauth2/token", s.handleToken).Methods(http.MethodPost)
	return r
}

// Start starts the server on a random loopback port.
func (s *OAuthServer) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.port, nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.httpServer = &http.Server{
		Handler:  s.Handler(),
		ErrorLog: log.New(io.Discard, "", 0),
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			if s.config.Debug {
				fmt.Fprintf(os.Stderr, "OAuth server error: %v\n", err)
			}
		}
	}()

	s.running = true
	if s.config.Debug {
		fmt.Fprintf(os.Stderr, "Mock OAuth server started on port %d\n", s.port)
	}

	return s.port, nil
}

// Stop stops the server.
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.httpServer.Shutdown(ctx)
	s.running = false
	return err
}

// URL returns the base URL of the running server.
func (s *OAuthServer) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

// ClientID returns the expected client id.
func (s *OAuthServer) ClientID() string {
	return s.config.ClientID
}

// SetSessionActive controls whether prompt=none requests succeed.
func (s *OAuthServer) SetSessionActive(active bool) {
	s.mu.Lock()
	s.sessionActive = active
	s.mu.Unlock()
}

// FailNextRefresh makes the next refresh_token requests answer with the
// given statuses, in order.
func (s *OAuthServer) FailNextRefresh(statuses ...int) {
	s.mu.Lock()
	s.failNext["refresh_token"] = append(s.failNext["refresh_token"], statuses...)
	s.mu.Unlock()
}

// FailNextExchange makes the next authorization_code requests answer with the
// given statuses, in order.
func (s *OAuthServer) FailNextExchange(statuses ...int) {
	s.mu.Lock()
	s.failNext["authorization_code"] = append(s.failNext["authorization_code"], statuses...)
	s.mu.Unlock()
}

// SetRefreshDelay delays every refresh response, to widen race windows.
func (s *OAuthServer) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	s.refreshDelay = d
	s.mu.Unlock()
}

// TokenCalls returns the number of token endpoint requests served.
func (s *OAuthServer) TokenCalls() int { return int(s.tokenCalls.Load()) }

// ExchangeCalls returns the number of authorization_code grants served.
func (s *OAuthServer) ExchangeCalls() int { return int(s.exchangeCalls.Load()) }

// RefreshCalls returns the number of refresh_token grants served.
func (s *OAuthServer) RefreshCalls() int { return int(s.refreshCalls.Load()) }

// ValidateToken reports whether accessToken was issued here, has not been
// revoked and has not expired according to the server clock.
func (s *OAuthServer) ValidateToken(accessToken string) bool {
	s.mu.RLock()
	exp, ok := s.accessTokens[accessToken]
	s.mu.RUnlock()
	return ok && s.clock.Now().Before(exp)
}

// RevokeAccessTokens invalidates every issued access token and returns how
// many there were. Refresh tokens stay valid.
func (s *OAuthServer) RevokeAccessTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.accessTokens)
	s.accessTokens = make(map[string]time.Time)
	return n
}

// IssueTokens mints a token set directly, for seeding a credential store.
func (s *OAuthServer) IssueTokens(scope string) *TokenResponse {
	return s.issue(scope)
}

// AccessToken mints an access token expiring at exp. It is registered as
// valid until then.
func (s *OAuthServer) AccessToken(exp time.Time) string {
	token := s.sign(jwt.MapClaims{
		"sub": s.config.Subject,
		"exp": exp.Unix(),
		"iat": s.clock.Now().Unix(),
		"jti": uuid.NewString(),
	})
	s.mu.Lock()
	s.accessTokens[token] = exp
	s.mu.Unlock()
	return token
}

// Authorize plays the browser: it requests authURL, does not follow the
// redirect, and returns the callback URL the server redirected to.
func (s *OAuthServer) Authorize(ctx context.Context, authURL string) (*url.URL, error) {
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("authorize returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return url.Parse(resp.Header.Get("Location"))
}

func (s *OAuthServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")

	if q.Get("response_type") != "code" {
		http.Error(w, "unsupported_response_type", http.StatusBadRequest)
		return
	}
	if clientID != s.config.ClientID {
		http.Error(w, "invalid_client", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		http.Error(w, "PKCE required: S256 code_challenge missing", http.StatusBadRequest)
		return
	}

	redirectURL, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	cb := redirectURL.Query()
	if state != "" {
		cb.Set("state", state)
	}

	s.mu.RLock()
	active := s.sessionActive
	s.mu.RUnlock()

	if q.Get("prompt") == "none" && !active {
		cb.Set("error", "login_required")
		redirectURL.RawQuery = cb.Encode()
		http.Redirect(w, r, redirectURL.String(), http.StatusFound)
		return
	}

	code := generateOpaqueToken()
	s.mu.Lock()
	s.authCodes[code] = &authCodeEntry{
		ClientID:        clientID,
		RedirectURI:     redirectURI,
		Scope:           q.Get("scope"),
		CodeChallenge:   q.Get("code_challenge"),
		ChallengeMethod: q.Get("code_challenge_method"),
	}
	s.sessionActive = true
	s.mu.Unlock()

	cb.Set("code", code)
	redirectURL.RawQuery = cb.Encode()

	if s.config.Debug {
		fmt.Fprintf(os.Stderr, "Auto-approving and redirecting to: %s\n", redirectURL.String())
	}
	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

func (s *OAuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	s.tokenCalls.Add(1)

	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	if r.Header.Get("Authorization") != "" || r.PostForm.Has("client_secret") {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "public clients must not authenticate")
		return
	}
	if r.PostForm.Get("client_id") != s.config.ClientID {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "unknown client_id")
		return
	}

	grantType := r.PostForm.Get("grant_type")
	if status, ok := s.popFailure(grantType); ok {
		writeOAuthError(w, status, "server_error", "simulated failure")
		return
	}

	switch grantType {
	case "authorization_code":
		s.exchangeCalls.Add(1)
		s.handleAuthCodeExchange(w, r)
	case "refresh_token":
		s.refreshCalls.Add(1)
		s.handleRefreshToken(w, r)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type",
			fmt.Sprintf("grant_type %s not supported", grantType))
	}
}

func (s *OAuthServer) popFailure(grantType string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failNext[grantType]
	if len(queue) == 0 {
		return 0, false
	}
	s.failNext[grantType] = queue[1:]
	return queue[0], true
}

func (s *OAuthServer) handleAuthCodeExchange(w http.ResponseWriter, r *http.Request) {
	code := r.PostForm.Get("code")

	s.mu.Lock()
	entry, exists := s.authCodes[code]
	delete(s.authCodes, code)
	s.mu.Unlock()

	if !exists {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "authorization code not found or already used")
		return
	}
	if r.PostForm.Get("redirect_uri") != entry.RedirectURI {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	}
	if !verifyPKCE(entry.CodeChallenge, r.PostForm.Get("code_verifier")) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code_verifier verification failed")
		return
	}

	writeJSON(w, http.StatusOK, s.issue(entry.Scope))
}

func (s *OAuthServer) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	delay := s.refreshDelay
	s.mu.RUnlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	refreshToken := r.PostForm.Get("refresh_token")

	s.mu.Lock()
	valid := s.refreshTokens[refreshToken]
	if valid && !s.config.NoRotation {
		delete(s.refreshTokens, refreshToken)
	}
	s.mu.Unlock()

	if !valid {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token not found")
		return
	}

	resp := s.issue("")
	if s.config.NoRotation {
		s.mu.Lock()
		delete(s.refreshTokens, resp.RefreshToken)
		s.mu.Unlock()
		resp.RefreshToken = ""
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *OAuthServer) issue(scope string) *TokenResponse {
	now := s.clock.Now()
	accessExp := now.Add(s.config.AccessTokenLifetime)

	accessClaims := jwt.MapClaims{
		"sub":   s.config.Subject,
		"email": s.config.Email,
		"name":  s.config.Name,
		"exp":   accessExp.Unix(),
		"iat":   now.Unix(),
		"jti":   uuid.NewString(),
	}
	if scope != "" {
		accessClaims["scope"] = scope
	}
	if len(s.config.Authorities) > 0 {
		accessClaims["authorities"] = s.config.Authorities
	}
	accessToken := s.sign(accessClaims)

	idToken := s.sign(jwt.MapClaims{
		"sub":   s.config.Subject,
		"aud":   s.config.ClientID,
		"email": s.config.Email,
		"name":  s.config.Name,
		"exp":   accessExp.Unix(),
		"iat":   now.Unix(),
	})

	var refreshToken string
	if s.config.OpaqueRefreshTokens {
		refreshToken = generateOpaqueToken()
	} else {
		refreshToken = s.sign(jwt.MapClaims{
			"sub": s.config.Subject,
			"exp": now.Add(s.config.RefreshTokenLifetime).Unix(),
			"jti": uuid.NewString(),
		})
	}

	s.mu.Lock()
	s.accessTokens[accessToken] = accessExp
	s.refreshTokens[refreshToken] = true
	s.mu.Unlock()

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.AccessTokenLifetime.Seconds()),
		Scope:        scope,
		IDToken:      idToken,
	}
}

func (s *OAuthServer) sign(claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		// HS256 with a non-empty key cannot fail.
		panic(fmt.Errorf("failed to sign token: %w", err))
	}
	return token
}

func verifyPKCE(challenge, verifier string) bool {
	if verifier == "" {
		return false
	}
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:]) == challenge
}

func generateOpaqueToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("crypto/rand failed: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
