package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/app"
	"storefront/internal/auth"
	"storefront/internal/cli"
	"storefront/internal/credstore"
	"storefront/internal/testing/mock"
)

type env struct {
	authServer *mock.OAuthServer
	resource   *mock.ResourceServer
	authURL    string
	gatewayURL string
	configPath string
	sessionDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Chdir(t.TempDir())

	authServer := mock.NewOAuthServer(mock.OAuthServerConfig{Email: "jane@shop.example.com"})
	authTS := httptest.NewServer(authServer.Handler())
	t.Cleanup(authTS.Close)

	resource := mock.NewResourceServer(authServer)
	resourceTS := httptest.NewServer(resource.Handler())
	t.Cleanup(resourceTS.Close)

	e := &env{
		authServer: authServer,
		resource:   resource,
		authURL:    authTS.URL,
		gatewayURL: resourceTS.URL,
		sessionDir: t.TempDir(),
	}
	e.configPath = filepath.Join(t.TempDir(), "config.yaml")
	e.writeConfig(t, "http://127.0.0.1:3000/callback")
	return e
}

func (e *env) writeConfig(t *testing.T, redirectURI string) {
	t.Helper()
	content := fmt.Sprintf(`auth:
  baseURL: %s
  redirectURI: %s
gateway:
  baseURL: %s
session:
  storage: file
  dir: %s
`, e.authURL, redirectURI, e.gatewayURL, e.sessionDir)
	require.NoError(t, os.WriteFile(e.configPath, []byte(content), 0600))
}

func (e *env) store(t *testing.T) *credstore.Store {
	t.Helper()
	store, err := credstore.Open(credstore.Options{Storage: credstore.StorageFile, Dir: e.sessionDir, Session: "default"})
	require.NoError(t, err)
	return store
}

func (e *env) seed(t *testing.T, accessToken string) *mock.TokenResponse {
	t.Helper()
	tok := e.authServer.IssueTokens("openid api.read")
	if accessToken == "" {
		accessToken = tok.AccessToken
	}
	require.NoError(t, e.store(t).SetMany(map[credstore.Key]string{
		credstore.KeyAccessToken:  accessToken,
		credstore.KeyRefreshToken: tok.RefreshToken,
	}))
	return tok
}

func (e *env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	globalFlags = cli.CommandFlags{OutputFormat: string(cli.OutputFormatTable)}
	requestData, requestHeaders, requestInclude = "", nil, false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--config", e.configPath))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "storefront", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"auth", "request", "watch", "version", "self-update"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	original := rootCmd.Version
	defer SetVersion(original)
	SetVersion("1.2.3-test")

	var buf bytes.Buffer
	versionCmd := newVersionCmd()
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "storefront version 1.2.3-test\n", buf.String())
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestSelfUpdate_DevelopmentVersion(t *testing.T) {
	original := rootCmd.Version
	defer SetVersion(original)

	for _, v := range []string{"", "dev"} {
		SetVersion(v)
		err := runSelfUpdate(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot self-update a development version")
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitCodeError},
		{"auth required", &cli.AuthRequiredError{Session: "default"}, ExitCodeAuthRequired},
		{"auth expired", fmt.Errorf("wrapped: %w", &cli.AuthExpiredError{Session: "default"}), ExitCodeAuthRequired},
		{"auth failed", &cli.AuthFailedError{Session: "default", Reason: errors.New("denied")}, ExitCodeAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(t, "auth", "status", "-o", "xml")
	assert.Error(t, err)
}

func TestAuthStatus(t *testing.T) {
	e := newEnv(t)

	out, errOut, err := e.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated")
	assert.Contains(t, errOut, "storefront auth login --session default")

	e.seed(t, "")
	out, _, err = e.run(t, "auth", "status", "-o", "json")
	require.NoError(t, err)

	var view cli.SessionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "authenticated", view.State)
	assert.Equal(t, "file", view.Storage)
	assert.True(t, view.HasRefreshToken)
}

func TestAuthWhoami(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "auth", "whoami")
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))

	e.seed(t, "")
	out, _, err := e.run(t, "auth", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "jane@shop.example.com")
	assert.Contains(t, out, "api.read")
}

func TestAuthRefresh(t *testing.T) {
	e := newEnv(t)
	tok := e.seed(t, "")

	_, _, err := e.run(t, "auth", "refresh", "--quiet")
	require.NoError(t, err)
	assert.Equal(t, 1, e.authServer.RefreshCalls())
	assert.NotEqual(t, tok.AccessToken, e.store(t).Value(credstore.KeyAccessToken))

	e.authServer.FailNextRefresh(http.StatusBadRequest)
	_, _, err = e.run(t, "auth", "refresh", "--quiet")
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))
	assert.Empty(t, e.store(t).Snapshot(), "rejected refresh ends the session")
}

func TestAuthLogout(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "")

	_, errOut, err := e.run(t, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, errOut, `Logged out of session "default"`)
	assert.Empty(t, e.store(t).Snapshot())

	_, errOut, err = e.run(t, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, errOut, "No stored credentials")
}

func TestRequest(t *testing.T) {
	t.Run("renews a stale token and retries once", func(t *testing.T) {
		e := newEnv(t)
		e.seed(t, "stale-token")

		out, _, err := e.run(t, "request", "post", "/api/orders", "--data", `{"productId":7}`, "-H", "X-Trace: abc")
		require.NoError(t, err)

		var echo map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &echo))
		assert.Equal(t, "POST", echo["method"])
		assert.Equal(t, `{"productId":7}`, echo["body"], "body replayed on retry")

		assert.Equal(t, 2, e.resource.CallsTo("/api/orders"))
		assert.Equal(t, 1, e.authServer.RefreshCalls())
		requests := e.resource.Requests()
		assert.Equal(t, "abc", requests[1].Header.Get("X-Trace"))
		assert.NotEqual(t, "stale-token", e.store(t).Value(credstore.KeyAccessToken), "renewed token persisted")
	})

	t.Run("no session", func(t *testing.T) {
		e := newEnv(t)

		_, _, err := e.run(t, "request", "GET", "/api/products")
		assert.Equal(t, ExitCodeAuthRequired, getExitCode(err))
		assert.Zero(t, e.resource.CallsTo("/api/products"), "nothing sent without a token")
	})

	t.Run("body from file with headers printed", func(t *testing.T) {
		e := newEnv(t)
		e.seed(t, "")
		path := filepath.Join(t.TempDir(), "order.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"quantity":2}`), 0600))

		out, _, err := e.run(t, "request", "PUT", "/api/orders/12", "--data", "@"+path, "-i")
		require.NoError(t, err)
		assert.Contains(t, out, "200 OK")
		assert.Contains(t, out, "Content-Type: application/json")
		assert.Contains(t, out, `\"quantity\":2`)
	})

	t.Run("invalid header", func(t *testing.T) {
		e := newEnv(t)
		e.seed(t, "")

		_, _, err := e.run(t, "request", "GET", "/api/products", "-H", "no-colon")
		assert.Error(t, err)
	})
}

func TestAuthLogin(t *testing.T) {
	e := newEnv(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	e.writeConfig(t, fmt.Sprintf("http://127.0.0.1:%d/callback", port))

	done := make(chan struct{})
	browser := auth.NavigatorFunc(func(ctx context.Context, u string) error {
		go func() {
			defer close(done)
			callback, err := e.authServer.Authorize(context.Background(), u)
			if err != nil {
				return
			}
			resp, err := http.Get(callback.String())
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()
		return nil
	})
	serviceOptions = []app.ServiceOption{app.WithNavigator(browser)}
	defer func() { serviceOptions = nil }()

	_, errOut, err := e.run(t, "auth", "login")
	require.NoError(t, err)
	<-done

	assert.Contains(t, errOut, "Signed in as jane@shop.example.com")
	store := e.store(t)
	assert.True(t, e.authServer.ValidateToken(store.Value(credstore.KeyAccessToken)))
	assert.Empty(t, store.Value(credstore.KeyCodeVerifier), "verifier consumed")
}
