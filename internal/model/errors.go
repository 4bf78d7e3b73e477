package model

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when a session holds no usable credential for a provider.
var ErrUnauthenticated = errors.New("provider is not authenticated")

// ConfigError reports missing required provider configuration.
type ConfigError struct {
	Provider Provider
	Field    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s is required", e.Provider, e.Field)
}

// AuthExchangeError reports a failed authorization code exchange.
// Description carries the provider's error message verbatim when one was returned.
type AuthExchangeError struct {
	Provider    Provider
	Code        string
	Description string
	Err         error
}

func (e *AuthExchangeError) Error() string {
	msg := e.Description
	if msg == "" && e.Code != "" {
		msg = e.Code
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s authorization failed: %s", e.Provider.DisplayName(), msg)
}

func (e *AuthExchangeError) Unwrap() error {
	return e.Err
}

// ValidationError reports input that prevents a batch from starting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// TransportError reports a non-success response from a provider's send endpoint.
type TransportError struct {
	Provider   Provider
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s send failed: status %d: %s", e.Provider.DisplayName(), e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s send failed: status %d", e.Provider.DisplayName(), e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s send failed: %v", e.Provider.DisplayName(), e.Err)
	default:
		return fmt.Sprintf("%s send failed", e.Provider.DisplayName())
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
