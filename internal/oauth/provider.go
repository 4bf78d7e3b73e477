package oauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/mailblast/mailblast/internal/model"
)

// Provider abstracts provider-specific OAuth operations.
type Provider interface {
	// Name returns the provider identifier.
	Name() model.Provider

	// AuthCodeURL builds the provider's authorization URL carrying state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a credential bundle.
	Exchange(ctx context.Context, code string) (*model.Credential, error)

	// OAuth2Config exposes the client configuration used for token refresh.
	OAuth2Config() *oauth2.Config

	// HTTPContext returns ctx carrying the provider's HTTP client, if one was configured.
	HTTPContext(ctx context.Context) context.Context
}

// Option configures an OAuth provider.
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

// WithHTTPClient sets a custom HTTP client for token requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTimeout bounds each token request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithClock overrides the clock used to stamp credentials.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{timeout: 30 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) httpContext(ctx context.Context) context.Context {
	if o.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: o.timeout})
}

func (o options) exchange(ctx context.Context, cfg *oauth2.Config, provider model.Provider, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &model.AuthExchangeError{Provider: provider, Code: "invalid_request", Description: "authorization code is missing"}
	}

	ctx, cancel := context.WithTimeout(o.httpContext(ctx), o.timeout)
	defer cancel()

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, exchangeError(provider, err)
	}
	if tok.AccessToken == "" {
		return nil, &model.AuthExchangeError{Provider: provider, Code: "invalid_response", Description: "token endpoint returned no access token"}
	}
	return tok, nil
}

func exchangeError(provider model.Provider, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		desc := rErr.ErrorDescription
		if desc == "" && rErr.ErrorCode == "" {
			desc = strings.TrimSpace(string(rErr.Body))
		}
		return &model.AuthExchangeError{
			Provider:    provider,
			Code:        rErr.ErrorCode,
			Description: desc,
			Err:         err,
		}
	}
	return &model.AuthExchangeError{Provider: provider, Err: err}
}

// grantedScopes returns the scopes the token endpoint reports, or requested when it reports none.
func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if s, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(s) != "" {
		return strings.Fields(s)
	}
	return append([]string(nil), requested...)
}

// Token converts a stored credential back into an oauth2 token.
func Token(cred *model.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		TokenType:    cred.TokenType,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}
}
