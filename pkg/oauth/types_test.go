package oauth

import (
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfigScope(t *testing.T) {
	cfg := Config{Scopes: []string{"openid", "profile", "api.read", "api.write"}}
	if got := cfg.Scope(); got != "openid profile api.read api.write" {
		t.Errorf("Scope() = %q", got)
	}
}

func TestTokenFromOAuth2(t *testing.T) {
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	src := (&oauth2.Token{
		AccessToken:  "AT",
		TokenType:    "Bearer",
		RefreshToken: "RT",
		Expiry:       expiry,
	}).WithExtra(map[string]any{"id_token": "IT", "scope": "openid api.read"})

	tok := tokenFromOAuth2(src)

	if tok.AccessToken != "AT" || tok.RefreshToken != "RT" || tok.IDToken != "IT" {
		t.Errorf("unexpected token %+v", tok)
	}
	if !tok.ExpiresAt.Equal(expiry) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, expiry)
	}
	if got := tok.Scopes(); len(got) != 2 || got[1] != "api.read" {
		t.Errorf("Scopes() = %v", got)
	}
}

func TestTokenFromOAuth2_NoExtras(t *testing.T) {
	tok := tokenFromOAuth2(&oauth2.Token{AccessToken: "AT"})
	if tok.IDToken != "" {
		t.Errorf("IDToken = %q, want empty", tok.IDToken)
	}
	if tok.Scopes() != nil {
		t.Errorf("Scopes() = %v, want nil", tok.Scopes())
	}
}
