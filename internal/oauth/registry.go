package oauth

import (
	"errors"

	"github.com/mailblast/mailblast/internal/config"
	"github.com/mailblast/mailblast/internal/model"
)

// ErrNoProviders is returned when no provider could be configured.
var ErrNoProviders = errors.New("oauth: no provider is configured")

// Registry holds the configured providers.
type Registry struct {
	providers map[model.Provider]Provider
}

// NewRegistry creates a registry from explicit providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.Provider]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// FromConfig builds every provider that has configuration. Providers that are
// enabled but incomplete are skipped and reported through the returned errors;
// ErrNoProviders is returned when nothing could be built.
func FromConfig(cfg *config.Config, opts ...Option) (*Registry, []error) {
	var (
		built []Provider
		errs  []error
	)

	if cfg.Google.Enabled() {
		if p, err := NewGoogle(cfg.Google, opts...); err != nil {
			errs = append(errs, err)
		} else {
			built = append(built, p)
		}
	}
	if cfg.Microsoft.Enabled() {
		if p, err := NewMicrosoft(cfg.Microsoft, opts...); err != nil {
			errs = append(errs, err)
		} else {
			built = append(built, p)
		}
	}

	if len(built) == 0 {
		errs = append(errs, ErrNoProviders)
	}
	return NewRegistry(built...), errs
}

// Get returns the provider, or false when it is not configured.
func (r *Registry) Get(p model.Provider) (Provider, bool) {
	provider, ok := r.providers[p]
	return provider, ok
}

// Configured reports whether p has a provider.
func (r *Registry) Configured(p model.Provider) bool {
	_, ok := r.providers[p]
	return ok
}
