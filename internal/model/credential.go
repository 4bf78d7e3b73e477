package model

import (
	"time"
)

// Credential is the validated credential bundle obtained from an authorization
// code exchange. Google bundles carry the refresh material; Microsoft bundles
// carry the access token, its expiry and the raw provider result.
type Credential struct {
	Provider     Provider       `json:"provider"`
	AccessToken  string         `json:"accessToken"`
	TokenType    string         `json:"tokenType,omitempty"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	Expiry       time.Time      `json:"expiry,omitempty"`
	TokenURI     string         `json:"tokenUri,omitempty"`
	ClientID     string         `json:"clientId,omitempty"`
	Scopes       []string       `json:"scopes,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
	ObtainedAt   time.Time      `json:"obtainedAt"`
}

// Usable reports whether every field the provider requires is populated.
// A partially populated bundle is never treated as authenticated.
func (c *Credential) Usable() bool {
	if c == nil || !c.Provider.Valid() || c.AccessToken == "" {
		return false
	}
	switch c.Provider {
	case ProviderGoogle:
		return c.TokenURI != "" && c.ClientID != "" && len(c.Scopes) > 0
	case ProviderMicrosoft:
		return !c.Expiry.IsZero()
	}
	return false
}

// Expired reports whether the access token is past its expiry at now.
// A zero expiry never expires.
func (c *Credential) Expired(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Before(c.Expiry)
}

// CanRefresh reports whether the bundle carries a refresh token.
func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}

// Clone returns a deep copy of the bundle.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	if c.Raw != nil {
		out.Raw = make(map[string]any, len(c.Raw))
		for k, v := range c.Raw {
			out.Raw[k] = v
		}
	}
	return &out
}
