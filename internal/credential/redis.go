package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mailblast/mailblast/internal/database"
	"github.com/mailblast/mailblast/internal/model"
)

const keyPrefix = "mailblast:session"

// Redis is a Store whose entries expire together with the session.
type Redis struct {
	rdb *database.Redis
	ttl time.Duration
}

// NewRedis creates a Redis-backed store. ttl should match the session lifetime.
func NewRedis(rdb *database.Redis, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func redisKey(sessionID string, provider model.Provider) string {
	return fmt.Sprintf("%s:%s:credential:%s", keyPrefix, sessionID, provider)
}

func flowKey(sessionID string, provider model.Provider) string {
	return fmt.Sprintf("%s:%s:flow:%s", keyPrefix, sessionID, provider)
}

// Get loads and decodes the bundle for provider.
func (s *Redis) Get(ctx context.Context, sessionID string, provider model.Provider) (*model.Credential, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	data, err := s.rdb.GetBytes(ctx, redisKey(sessionID, provider))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUnauthenticated
		}
		return nil, fmt.Errorf("credential: failed to load bundle: %w", err)
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("credential: failed to decode bundle: %w", err)
	}
	if !cred.Usable() {
		return nil, model.ErrUnauthenticated
	}
	return &cred, nil
}

// Set encodes and stores cred with the session TTL.
func (s *Redis) Set(ctx context.Context, sessionID string, cred *model.Credential) error {
	if err := validate(sessionID, cred); err != nil {
		return err
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("credential: failed to encode bundle: %w", err)
	}
	if err := s.rdb.SetWithTTL(ctx, redisKey(sessionID, cred.Provider), data, s.ttl); err != nil {
		return fmt.Errorf("credential: failed to store bundle: %w", err)
	}
	return nil
}

// Clear deletes the bundle for provider.
func (s *Redis) Clear(ctx context.Context, sessionID string, provider model.Provider) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if err := s.rdb.Delete(ctx, redisKey(sessionID, provider)); err != nil {
		return fmt.Errorf("credential: failed to clear bundle: %w", err)
	}
	return nil
}

// GetFlow loads the flow record for provider.
func (s *Redis) GetFlow(ctx context.Context, sessionID string, provider model.Provider) (*Flow, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	data, err := s.rdb.GetBytes(ctx, flowKey(sessionID, provider))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("credential: failed to load flow: %w", err)
	}

	var f Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("credential: failed to decode flow: %w", err)
	}
	return &f, nil
}

// SetFlow stores the flow record with the session TTL.
func (s *Redis) SetFlow(ctx context.Context, sessionID string, provider model.Provider, flow *Flow) error {
	if sessionID == "" {
		return ErrNoSession
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("credential: failed to encode flow: %w", err)
	}
	if err := s.rdb.SetWithTTL(ctx, flowKey(sessionID, provider), data, s.ttl); err != nil {
		return fmt.Errorf("credential: failed to store flow: %w", err)
	}
	return nil
}

// ClearFlow deletes the flow record for provider.
func (s *Redis) ClearFlow(ctx context.Context, sessionID string, provider model.Provider) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if err := s.rdb.Delete(ctx, flowKey(sessionID, provider)); err != nil {
		return fmt.Errorf("credential: failed to clear flow: %w", err)
	}
	return nil
}
