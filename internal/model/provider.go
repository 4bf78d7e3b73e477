package model

import (
	"fmt"
	"strings"
)

// Provider identifies an email provider. Only the values declared below are valid.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// Providers returns every supported provider in display order.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderMicrosoft}
}

// ParseProvider maps a user-supplied label onto a Provider.
// Unknown labels are rejected instead of silently falling through.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderMicrosoft:
		return p, nil
	case "":
		return "", &ValidationError{Field: "provider", Message: "a provider must be selected"}
	default:
		return "", &ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", s)}
	}
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderMicrosoft
}

// DisplayName returns the human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google"
	case ProviderMicrosoft:
		return "Microsoft"
	default:
		return string(p)
	}
}

func (p Provider) String() string {
	return string(p)
}
