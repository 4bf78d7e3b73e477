package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mailblast/mailblast/internal/credential"
	"github.com/mailblast/mailblast/internal/logger"
	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/oauth"
)

// Common service errors
var (
	ErrProviderNotConfigured = errors.New("provider is not configured")
)

// DefaultStateTTL bounds how long an authorization request waits for its callback.
const DefaultStateTTL = 10 * time.Minute

// SessionStore is the per-session state the services operate on.
type SessionStore interface {
	credential.Store
	credential.FlowStore
}

// AuthService drives the authorization flow of every provider for every session.
type AuthService struct {
	providers *oauth.Registry
	store     SessionStore
	inflight  singleflight.Group
	stateTTL  time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(providers *oauth.Registry, store SessionStore, log *logger.Logger) *AuthService {
	return &AuthService{
		providers: providers,
		store:     store,
		stateTTL:  DefaultStateTTL,
		now:       time.Now,
		log:       log.WithComponent("auth_service"),
	}
}

// SetStateTTL overrides DefaultStateTTL.
func (s *AuthService) SetStateTTL(d time.Duration) {
	s.stateTTL = d
}

func (s *AuthService) provider(p model.Provider) (oauth.Provider, error) {
	if !p.Valid() {
		return nil, &model.ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", p)}
	}
	provider, ok := s.providers.Get(p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, p)
	}
	return provider, nil
}

// BeginAuthorization records a fresh state for the session and returns the
// provider's authorization URL. Stored credentials are left untouched.
func (s *AuthService) BeginAuthorization(ctx context.Context, sessionID string, p model.Provider) (string, error) {
	if sessionID == "" {
		return "", credential.ErrNoSession
	}
	provider, err := s.provider(p)
	if err != nil {
		return "", err
	}

	flow, err := s.store.GetFlow(ctx, sessionID, p)
	if err != nil {
		return "", fmt.Errorf("failed to load authorization flow: %w", err)
	}
	next := &credential.Flow{State: uuid.NewString(), RequestedAt: s.now()}
	if flow != nil {
		next.ConsumedCode = flow.ConsumedCode
	}
	if err := s.store.SetFlow(ctx, sessionID, p, next); err != nil {
		return "", fmt.Errorf("failed to store authorization flow: %w", err)
	}

	s.log.WithSessionID(sessionID).Info().Str("provider", string(p)).Msg("authorization requested")
	return provider.AuthCodeURL(next.State), nil
}

// CompleteAuthorization exchanges code for a credential bundle and stores it.
//
// Concurrent deliveries of the same code for the same session share one
// exchange. A code that was already exchanged returns the stored bundle while
// the session is authenticated and fails with *model.AuthExchangeError
// otherwise; the token endpoint is not contacted again in either case.
// On failure the flow stays in AuthorizationRequested and stored credentials
// are unchanged.
func (s *AuthService) CompleteAuthorization(ctx context.Context, sessionID string, p model.Provider, code, state string) (*model.Credential, error) {
	if sessionID == "" {
		return nil, credential.ErrNoSession
	}
	provider, err := s.provider(p)
	if err != nil {
		return nil, err
	}

	// The shared exchange outlives any single caller; the provider's own
	// timeout still bounds it.
	key := sessionID + "|" + string(p) + "|" + credential.CodeDigest(code)
	ch := s.inflight.DoChan(key, func() (any, error) {
		return s.complete(context.WithoutCancel(ctx), sessionID, provider, code, state)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		s.log.WithSessionID(sessionID).Debug().Str("provider", string(p)).Msg("authorization callback shared an in-flight exchange")
	}
	return res.Val.(*model.Credential).Clone(), nil
}

func (s *AuthService) complete(ctx context.Context, sessionID string, provider oauth.Provider, code, state string) (*model.Credential, error) {
	p := provider.Name()
	log := s.log.WithSessionID(sessionID).WithProvider(p)

	flow, err := s.store.GetFlow(ctx, sessionID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization flow: %w", err)
	}

	if code != "" && flow.Consumed(code) {
		cred, err := s.store.Get(ctx, sessionID, p)
		switch {
		case err == nil:
			log.Info().Msg("duplicate authorization callback ignored")
			return cred, nil
		case errors.Is(err, model.ErrUnauthenticated):
			return nil, &model.AuthExchangeError{Provider: p, Code: "invalid_grant", Description: "authorization code has already been used"}
		default:
			return nil, fmt.Errorf("failed to load credential: %w", err)
		}
	}

	if !flow.Pending() || state == "" || flow.State != state {
		log.Warn().Bool("pending", flow.Pending()).Msg("authorization callback with unknown state")
		return nil, &model.AuthExchangeError{Provider: p, Code: "invalid_state", Description: "authorization state is missing or does not match"}
	}
	if s.stateTTL > 0 && s.now().Sub(flow.RequestedAt) > s.stateTTL {
		return nil, &model.AuthExchangeError{Provider: p, Code: "invalid_state", Description: "authorization request has expired"}
	}

	cred, err := provider.Exchange(ctx, code)
	if err != nil {
		log.Warn().Err(err).Msg("authorization exchange failed")
		return nil, err
	}

	// The code is spent once exchanged, so record that before the credential.
	// A failed write below then leaves the session unauthenticated.
	if err := s.store.SetFlow(ctx, sessionID, p, &credential.Flow{ConsumedCode: credential.CodeDigest(code)}); err != nil {
		return nil, fmt.Errorf("failed to store authorization flow: %w", err)
	}
	if err := s.store.Set(ctx, sessionID, cred); err != nil {
		if errors.Is(err, credential.ErrIncomplete) {
			return nil, &model.AuthExchangeError{Provider: p, Code: "invalid_response", Description: "token endpoint returned an incomplete credential", Err: err}
		}
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	log.Info().Bool("refresh_token", cred.CanRefresh()).Msg("provider authenticated")
	return cred, nil
}

// Logout clears the credential and any pending request for the provider.
func (s *AuthService) Logout(ctx context.Context, sessionID string, p model.Provider) error {
	if sessionID == "" {
		return credential.ErrNoSession
	}
	if !p.Valid() {
		return &model.ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", p)}
	}
	if err := s.store.Clear(ctx, sessionID, p); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	if err := s.store.ClearFlow(ctx, sessionID, p); err != nil {
		return fmt.Errorf("failed to clear authorization flow: %w", err)
	}

	s.log.WithSessionID(sessionID).Info().Str("provider", string(p)).Msg("provider logged out")
	return nil
}

// State returns the flow state of one provider in the session.
func (s *AuthService) State(ctx context.Context, sessionID string, p model.Provider) (model.FlowState, error) {
	if sessionID == "" {
		return "", credential.ErrNoSession
	}

	_, err := s.store.Get(ctx, sessionID, p)
	switch {
	case err == nil:
		return model.FlowAuthenticated, nil
	case !errors.Is(err, model.ErrUnauthenticated):
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	flow, err := s.store.GetFlow(ctx, sessionID, p)
	if err != nil {
		return "", fmt.Errorf("failed to load authorization flow: %w", err)
	}
	if flow.Pending() {
		return model.FlowAuthorizationRequested, nil
	}
	return model.FlowUnauthenticated, nil
}

// Status reports every known provider for the session.
func (s *AuthService) Status(ctx context.Context, sessionID string) ([]model.ProviderStatus, error) {
	out := make([]model.ProviderStatus, 0, len(model.Providers()))
	for _, p := range model.Providers() {
		st, err := s.State(ctx, sessionID, p)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ProviderStatus{
			Provider:   p,
			Name:       p.DisplayName(),
			Configured: s.providers.Configured(p),
			State:      st,
		})
	}
	return out, nil
}
