// Package oauth implements the OAuth2 authorization code flow for the
// supported mail providers.
//
// Each Provider builds its authorization URL and exchanges a code for a
// model.Credential. Exchange failures are returned as *model.AuthExchangeError
// carrying the provider's error description verbatim.
//
// Use WithHTTPClient to point a provider at an httptest server:
//
//	p, err := oauth.NewGoogle(cfg, oauth.WithHTTPClient(ts.Client()))
package oauth
