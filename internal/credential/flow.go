package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/mailblast/mailblast/internal/model"
)

// Flow is the in-flight authorization record for one provider in one session.
// Authorization codes are kept only as digests.
type Flow struct {
	State        string    `json:"state,omitempty"`
	RequestedAt  time.Time `json:"requestedAt,omitempty"`
	ConsumedCode string    `json:"consumedCode,omitempty"`
}

// Pending reports whether an authorization request awaits its callback.
func (f *Flow) Pending() bool {
	return f != nil && f.State != ""
}

// Consumed reports whether code was already exchanged in this flow.
func (f *Flow) Consumed(code string) bool {
	return f != nil && f.ConsumedCode != "" && f.ConsumedCode == CodeDigest(code)
}

// CodeDigest returns the stored form of an authorization code.
func CodeDigest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// FlowStore keeps authorization flow records next to the credentials.
type FlowStore interface {
	// GetFlow returns the record for provider, or nil when none exists.
	GetFlow(ctx context.Context, sessionID string, provider model.Provider) (*Flow, error)

	// SetFlow replaces the record for provider.
	SetFlow(ctx context.Context, sessionID string, provider model.Provider, flow *Flow) error

	// ClearFlow removes the record for provider.
	ClearFlow(ctx context.Context, sessionID string, provider model.Provider) error
}
