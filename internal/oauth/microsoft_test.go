package oauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
)

func microsoftConfig(authority string) config.MicrosoftConfig {
	return config.MicrosoftConfig{
		ClientID:     "ms-id",
		ClientSecret: "ms-secret",
		Tenant:       "contoso",
		RedirectURL:  "https://example.com/api/v1/auth/microsoft/callback",
		AuthorityURL: authority,
	}
}

func TestMicrosoftProvider_AuthCodeURL(t *testing.T) {
	t.Parallel()

	p, err := oauth.NewMicrosoft(microsoftConfig(""))
	require.NoError(t, err)

	u, err := url.Parse(p.AuthCodeURL("xyz"))
	require.NoError(t, err)
	require.Equal(t, "login.microsoftonline.com", u.Host)
	require.Equal(t, "/contoso/oauth2/v2.0/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "ms-id", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Contains(t, strings.Fields(q.Get("scope")), oauth.MicrosoftSendScope)
	require.Equal(t, "https://example.com/api/v1/auth/microsoft/callback", q.Get("redirect_uri"))
	require.Equal(t, "xyz", q.Get("state"))
	require.Empty(t, q.Get("access_type"))
}

func TestMicrosoftProvider_Exchange(t *testing.T) {
	t.Parallel()

	t.Run("success keeps raw result", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/contoso/oauth2/v2.0/token", r.URL.Path)
			require.NoError(t, r.ParseForm())
			require.Equal(t, "ms-id", r.PostForm.Get("client_id"))
			require.Equal(t, "ms-secret", r.PostForm.Get("client_secret"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":   "ms-access",
				"token_type":     "Bearer",
				"expires_in":     3599,
				"ext_expires_in": 3599,
				"scope":          "https://graph.microsoft.com/Mail.Send",
			})
		}))
		defer ts.Close()

		p, err := oauth.NewMicrosoft(microsoftConfig(ts.URL), oauth.WithHTTPClient(ts.Client()))
		require.NoError(t, err)

		cred, err := p.Exchange(context.Background(), "code")
		require.NoError(t, err)
		require.True(t, cred.Usable())
		require.Equal(t, "ms-access", cred.AccessToken)
		require.False(t, cred.Expiry.IsZero())
		require.Equal(t, "Bearer", cred.Raw["token_type"])
		require.Contains(t, cred.Raw, "ext_expires_in")
	})

	t.Run("error description surfaced verbatim", func(t *testing.T) {
		t.Parallel()

		const desc = "AADSTS54005: OAuth2 Authorization code was already redeemed, please retry with a new valid code."
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":             "invalid_grant",
				"error_description": desc,
			})
		}))
		defer ts.Close()

		p, err := oauth.NewMicrosoft(microsoftConfig(ts.URL), oauth.WithHTTPClient(ts.Client()))
		require.NoError(t, err)

		_, err = p.Exchange(context.Background(), "code")
		var exErr *model.AuthExchangeError
		require.True(t, errors.As(err, &exErr))
		require.Equal(t, desc, exErr.Description)
		require.Contains(t, err.Error(), desc)
	})
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("only configured providers are registered", func(t *testing.T) {
		t.Parallel()
		reg, errs := oauth.FromConfig(&config.Config{Google: googleConfig("")})
		require.Empty(t, errs)
		require.True(t, reg.Configured(model.ProviderGoogle))
		require.False(t, reg.Configured(model.ProviderMicrosoft))
	})

	t.Run("incomplete provider reports config error", func(t *testing.T) {
		t.Parallel()
		reg, errs := oauth.FromConfig(&config.Config{
			Google:    googleConfig(""),
			Microsoft: config.MicrosoftConfig{ClientID: "id"},
		})
		require.Len(t, errs, 1)
		var cfgErr *model.ConfigError
		require.True(t, errors.As(errs[0], &cfgErr))
		require.Equal(t, model.ProviderMicrosoft, cfgErr.Provider)
		require.True(t, reg.Configured(model.ProviderGoogle))
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Parallel()
		_, errs := oauth.FromConfig(&config.Config{})
		require.Len(t, errs, 1)
		require.ErrorIs(t, errs[0], oauth.ErrNoProviders)
	})
}
