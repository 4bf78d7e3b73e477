package model

// FlowState is the authorization state of one provider within one session.
type FlowState string

const (
	FlowUnauthenticated        FlowState = "unauthenticated"
	FlowAuthorizationRequested FlowState = "authorization_requested"
	FlowAuthenticated          FlowState = "authenticated"
)

// ProviderStatus describes a provider's state for a session.
type ProviderStatus struct {
	Provider   Provider  `json:"provider"`
	Name       string    `json:"name"`
	Configured bool      `json:"configured"`
	State      FlowState `json:"state"`
}
