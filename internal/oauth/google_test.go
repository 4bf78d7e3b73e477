package oauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
)

var (
	_ oauth.Provider = (*oauth.GoogleProvider)(nil)
	_ oauth.Provider = (*oauth.MicrosoftProvider)(nil)
)

func googleConfig(tokenURL string) config.GoogleConfig {
	return config.GoogleConfig{
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		RedirectURL:  "https://example.com/api/v1/auth/google/callback",
		TokenURL:     tokenURL,
	}
}

func TestNewGoogle(t *testing.T) {
	t.Parallel()

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()
		p, err := oauth.NewGoogle(googleConfig(""))
		require.NoError(t, err)
		require.Equal(t, model.ProviderGoogle, p.Name())
	})

	t.Run("missing client secret", func(t *testing.T) {
		t.Parallel()
		cfg := googleConfig("")
		cfg.ClientSecret = ""
		p, err := oauth.NewGoogle(cfg)
		var cfgErr *model.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		require.Equal(t, "google.client_secret", cfgErr.Field)
		require.Nil(t, p)
	})
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	t.Parallel()

	p, err := oauth.NewGoogle(googleConfig(""))
	require.NoError(t, err)

	u, err := url.Parse(p.AuthCodeURL("state-123"))
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", u.Host)

	q := u.Query()
	require.Equal(t, "test-id", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, oauth.GoogleSendScope, q.Get("scope"))
	require.Equal(t, "https://example.com/api/v1/auth/google/callback", q.Get("redirect_uri"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "true", q.Get("include_granted_scopes"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "state-123", q.Get("state"))
}

func TestGoogleProvider_Exchange(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			require.Equal(t, "good-code", r.PostForm.Get("code"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access",
				"refresh_token": "refresh",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"scope":         oauth.GoogleSendScope,
			})
		}))
		defer ts.Close()

		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		p, err := oauth.NewGoogle(googleConfig(ts.URL), oauth.WithHTTPClient(ts.Client()), oauth.WithClock(func() time.Time { return now }))
		require.NoError(t, err)

		cred, err := p.Exchange(context.Background(), "good-code")
		require.NoError(t, err)
		require.True(t, cred.Usable())
		require.Equal(t, "access", cred.AccessToken)
		require.Equal(t, "refresh", cred.RefreshToken)
		require.Equal(t, ts.URL, cred.TokenURI)
		require.Equal(t, "test-id", cred.ClientID)
		require.Equal(t, []string{oauth.GoogleSendScope}, cred.Scopes)
		require.Equal(t, now, cred.ObtainedAt)
		require.False(t, cred.Expiry.IsZero())
	})

	t.Run("reused code", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
		}))
		defer ts.Close()

		p, err := oauth.NewGoogle(googleConfig(ts.URL), oauth.WithHTTPClient(ts.Client()))
		require.NoError(t, err)

		cred, err := p.Exchange(context.Background(), "stale-code")
		require.Nil(t, cred)

		var exErr *model.AuthExchangeError
		require.True(t, errors.As(err, &exErr))
		require.Equal(t, model.ProviderGoogle, exErr.Provider)
		require.Equal(t, "invalid_grant", exErr.Code)
		require.Equal(t, "Bad Request", exErr.Description)
	})

	t.Run("empty code", func(t *testing.T) {
		t.Parallel()

		p, err := oauth.NewGoogle(googleConfig("http://127.0.0.1:1/token"))
		require.NoError(t, err)

		_, err = p.Exchange(context.Background(), "  ")
		var exErr *model.AuthExchangeError
		require.True(t, errors.As(err, &exErr))
		require.Equal(t, "invalid_request", exErr.Code)
	})
}

func TestToken(t *testing.T) {
	t.Parallel()

	expiry := time.Now().Add(time.Hour)
	tok := oauth.Token(&model.Credential{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry})
	require.Equal(t, "a", tok.AccessToken)
	require.Equal(t, "r", tok.RefreshToken)
	require.Equal(t, expiry, tok.Expiry)
}
