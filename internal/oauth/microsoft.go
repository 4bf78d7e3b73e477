package oauth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/model"
)

const (
	// MicrosoftSendScope grants permission to send mail as the signed-in user.
	MicrosoftSendScope = "https://graph.microsoft.com/Mail.Send"
	// offline_access makes the identity platform issue a refresh token.
	microsoftOfflineScope = "offline_access"
)

// MicrosoftProvider implements Provider for Microsoft identity platform accounts.
type MicrosoftProvider struct {
	config *oauth2.Config
	opts   options
}

// NewMicrosoft creates a Microsoft provider against the configured tenant authority.
func NewMicrosoft(cfg config.MicrosoftConfig, opts ...Option) (*MicrosoftProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint := microsoft.AzureADEndpoint(cfg.Tenant)
	if cfg.AuthorityURL != "" {
		base := strings.TrimSuffix(cfg.AuthorityURL, "/")
		endpoint = oauth2.Endpoint{
			AuthURL:   fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", base, cfg.Tenant),
			TokenURL:  fmt.Sprintf("%s/%s/oauth2/v2.0/token", base, cfg.Tenant),
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}

	return &MicrosoftProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{MicrosoftSendScope, microsoftOfflineScope},
			Endpoint:     endpoint,
		},
		opts: buildOptions(opts),
	}, nil
}

// Name returns the provider identifier.
func (p *MicrosoftProvider) Name() model.Provider {
	return model.ProviderMicrosoft
}

// AuthCodeURL builds the tenant authority's authorization URL.
func (p *MicrosoftProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a Microsoft credential bundle.
// The raw provider result fields are kept on the bundle.
func (p *MicrosoftProvider) Exchange(ctx context.Context, code string) (*model.Credential, error) {
	tok, err := p.opts.exchange(ctx, p.config, model.ProviderMicrosoft, code)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{"token_type": tok.TokenType}
	for _, k := range []string{"scope", "expires_in", "ext_expires_in"} {
		if v := tok.Extra(k); v != nil {
			raw[k] = v
		}
	}

	return &model.Credential{
		Provider:     model.ProviderMicrosoft,
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		TokenURI:     p.config.Endpoint.TokenURL,
		ClientID:     p.config.ClientID,
		Scopes:       grantedScopes(tok, p.config.Scopes),
		Raw:          raw,
		ObtainedAt:   p.opts.now(),
	}, nil
}

// OAuth2Config returns the client configuration.
func (p *MicrosoftProvider) OAuth2Config() *oauth2.Config {
	return p.config
}

// HTTPContext returns ctx carrying the provider's HTTP client.
func (p *MicrosoftProvider) HTTPContext(ctx context.Context) context.Context {
	return p.opts.httpContext(ctx)
}
