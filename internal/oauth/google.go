package oauth

import (
	"context"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/model"
)

// GoogleSendScope grants permission to send mail only.
const GoogleSendScope = "https://www.googleapis.com/auth/gmail.send"

// GoogleProvider implements Provider for Google accounts.
type GoogleProvider struct {
	config *oauth2.Config
	opts   options
}

// NewGoogle creates a Google provider. It returns a *model.ConfigError when
// a required setting is missing.
func NewGoogle(cfg config.GoogleConfig, opts ...Option) (*GoogleProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint := googleOAuth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{GoogleSendScope},
			Endpoint:     endpoint,
		},
		opts: buildOptions(opts),
	}, nil
}

// Name returns the provider identifier.
func (p *GoogleProvider) Name() model.Provider {
	return model.ProviderGoogle
}

// AuthCodeURL requests offline access and forces the consent screen so a
// refresh token is issued on every login.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.ApprovalForce,
	)
}

// Exchange trades an authorization code for a Google credential bundle.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.Credential, error) {
	tok, err := p.opts.exchange(ctx, p.config, model.ProviderGoogle, code)
	if err != nil {
		return nil, err
	}

	return &model.Credential{
		Provider:     model.ProviderGoogle,
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		TokenURI:     p.config.Endpoint.TokenURL,
		ClientID:     p.config.ClientID,
		Scopes:       grantedScopes(tok, p.config.Scopes),
		ObtainedAt:   p.opts.now(),
	}, nil
}

// OAuth2Config returns the client configuration.
func (p *GoogleProvider) OAuth2Config() *oauth2.Config {
	return p.config
}

// HTTPContext returns ctx carrying the provider's HTTP client.
func (p *GoogleProvider) HTTPContext(ctx context.Context) context.Context {
	return p.opts.httpContext(ctx)
}
