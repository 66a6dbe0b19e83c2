package auth

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/credstore"
	"storefront/internal/testing/mock"
	"storefront/pkg/oauth"
)

func freeRedirectURI(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return fmt.Sprintf("http://127.0.0.1:%d/callback", port)
}

func get(t *testing.T, u string) (int, string) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestNewCallbackServer_Validation(t *testing.T) {
	noop := func(context.Context, *url.URL) (string, error) { return "", nil }

	_, err := NewCallbackServer("https://localhost:3000/callback", noop, nil)
	assert.Error(t, err)

	_, err = NewCallbackServer("http://shop.example.com/callback", noop, nil)
	assert.Error(t, err)

	_, err = NewCallbackServer("http://localhost:3000/callback", noop, nil)
	assert.NoError(t, err)
}

func TestCallbackServer_HandlesOneCallback(t *testing.T) {
	redirectURI := freeRedirectURI(t)

	var received *url.URL
	handler := func(_ context.Context, u *url.URL) (string, error) {
		received = u
		return "", nil
	}

	server, err := NewCallbackServer(redirectURI, handler, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, server.Start(ctx))
	defer server.Stop()

	status, _ := get(t, redirectURI)
	assert.Equal(t, http.StatusBadRequest, status, "request without code or error is ignored")

	status, body := get(t, redirectURI+"?code=abc&state=s1")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Signed in")

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	_, err = server.WaitForCallback(waitCtx)
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.Equal(t, "abc", received.Query().Get("code"))
	assert.Equal(t, "127.0.0.1", received.Hostname())
	assert.Equal(t, "/callback", received.Path)

	status, _ = get(t, redirectURI+"?code=def")
	assert.Equal(t, http.StatusBadRequest, status, "second callback rejected")
}

func TestCallbackServer_ErrorPage(t *testing.T) {
	redirectURI := freeRedirectURI(t)
	handler := func(context.Context, *url.URL) (string, error) {
		return "", &CallbackError{Code: "access_denied", Description: "user <b>declined</b>"}
	}

	server, err := NewCallbackServer(redirectURI, handler, nil)
	require.NoError(t, err)
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop()

	status, body := get(t, redirectURI+"?error=access_denied")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "access_denied")
	assert.NotContains(t, body, "<b>declined</b>", "description is escaped")

	_, err = server.WaitForCallback(context.Background())
	var callbackErr *CallbackError
	assert.ErrorAs(t, err, &callbackErr)
}

func TestEngine_LoginWithCallbackServer(t *testing.T) {
	auth := mock.NewOAuthServer(mock.OAuthServerConfig{Name: "Jane Shopper"})
	port, err := auth.Start(context.Background())
	require.NoError(t, err)
	require.NotZero(t, port)
	defer func() { _ = auth.Stop(context.Background()) }()

	var callbackBody string
	done := make(chan struct{})
	browser := NavigatorFunc(func(ctx context.Context, u string) error {
		go func() {
			defer close(done)
			callback, err := auth.Authorize(ctx, u)
			if err != nil {
				return
			}
			resp, err := http.Get(callback.String())
			if err != nil {
				return
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			callbackBody = string(b)
		}()
		return nil
	})

	store := credstore.NewMemory()
	engine, err := NewEngine(EngineConfig{
		OAuth: oauth.Config{
			BaseURL:     auth.URL(),
			ClientID:    "fp_frontend",
			RedirectURI: freeRedirectURI(t),
			Scopes:      []string{"openid"},
		},
	}, store, WithNavigator(browser))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	token, err := engine.LoginWithCallbackServer(ctx)
	require.NoError(t, err)
	<-done

	assert.Equal(t, token, store.Value(credstore.KeyAccessToken))
	assert.True(t, auth.ValidateToken(token))
	assert.Contains(t, callbackBody, "Jane Shopper")
}
