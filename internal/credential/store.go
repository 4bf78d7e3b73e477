// Package credential holds per-session provider credentials.
//
// Every operation is keyed by an explicit session identifier supplied by the
// hosting layer. The store does not inspect token freshness; refreshing an
// expired access token is the mail transport's job.
package credential

import (
	"context"
	"errors"

	"github.com/mailblast/mailblast/internal/model"
)

var (
	// ErrIncomplete is returned by Set for a bundle missing required fields.
	ErrIncomplete = errors.New("credential: incomplete credential bundle")
	// ErrNoSession is returned when the session identifier is empty.
	ErrNoSession = errors.New("credential: session identifier is required")
)

// Store persists credential bundles for the lifetime of a session.
type Store interface {
	// Get returns the bundle for provider, or model.ErrUnauthenticated.
	Get(ctx context.Context, sessionID string, provider model.Provider) (*model.Credential, error)

	// Set replaces the bundle for cred.Provider. Incomplete bundles are rejected
	// and leave any stored bundle untouched.
	Set(ctx context.Context, sessionID string, cred *model.Credential) error

	// Clear removes the bundle for provider. Clearing an absent bundle is not an error.
	Clear(ctx context.Context, sessionID string, provider model.Provider) error
}

func validate(sessionID string, cred *model.Credential) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if !cred.Usable() {
		return ErrIncomplete
	}
	return nil
}
