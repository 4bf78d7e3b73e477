package credential

import (
	"context"
	"sync"
	"time"

	"github.com/mailblast/mailblast/internal/model"
)

type key struct {
	session  string
	provider model.Provider
}

// entry holds a stored value with its expiration time.
type entry[V any] struct {
	expiresAt time.Time // zero value = never expires
	value     V
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithCleanupInterval starts a background sweep of expired entries.
// Stop it with Close.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.cleanupInterval = d
	}
}

// WithMemoryClock overrides the clock used to stamp and expire entries.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// Memory is an in-process Store. Every write stamps the entry with the
// session TTL, so state of an ended session is treated as absent and
// removed by Sweep. Bundles are copied on the way in and out.
type Memory struct {
	mu              sync.Mutex
	creds           map[key]entry[*model.Credential]
	flows           map[key]entry[Flow]
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	done            chan struct{}
	closeOnce       sync.Once
}

// NewMemory creates an empty in-memory store. Entries expire ttl after their
// last write; a non-positive ttl keeps them for the process lifetime.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		creds: make(map[key]entry[*model.Credential]),
		flows: make(map[key]entry[Flow]),
		ttl:   ttl,
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.cleanupInterval > 0 && m.ttl > 0 {
		go m.janitor()
	}
	return m
}

func (m *Memory) expiresAt() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

// Get returns a copy of the stored bundle.
func (m *Memory) Get(_ context.Context, sessionID string, provider model.Provider) (*model.Credential, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{sessionID, provider}
	e, ok := m.creds[k]
	if !ok {
		return nil, model.ErrUnauthenticated
	}
	if e.expired(m.now()) {
		delete(m.creds, k)
		return nil, model.ErrUnauthenticated
	}
	return e.value.Clone(), nil
}

// Set stores a copy of cred.
func (m *Memory) Set(_ context.Context, sessionID string, cred *model.Credential) error {
	if err := validate(sessionID, cred); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds[key{sessionID, cred.Provider}] = entry[*model.Credential]{value: cred.Clone(), expiresAt: m.expiresAt()}
	return nil
}

// Clear removes the bundle for provider.
func (m *Memory) Clear(_ context.Context, sessionID string, provider model.Provider) error {
	if sessionID == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.creds, key{sessionID, provider})
	return nil
}

// GetFlow returns a copy of the flow record.
func (m *Memory) GetFlow(_ context.Context, sessionID string, provider model.Provider) (*Flow, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{sessionID, provider}
	e, ok := m.flows[k]
	if !ok {
		return nil, nil
	}
	if e.expired(m.now()) {
		delete(m.flows, k)
		return nil, nil
	}
	f := e.value
	return &f, nil
}

// SetFlow stores a copy of flow.
func (m *Memory) SetFlow(_ context.Context, sessionID string, provider model.Provider, flow *Flow) error {
	if sessionID == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flows[key{sessionID, provider}] = entry[Flow]{value: *flow, expiresAt: m.expiresAt()}
	return nil
}

// ClearFlow removes the flow record.
func (m *Memory) ClearFlow(_ context.Context, sessionID string, provider model.Provider) error {
	if sessionID == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.flows, key{sessionID, provider})
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creds) + len(m.flows)
}

// Sweep removes every expired entry.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.creds {
		if e.expired(now) {
			delete(m.creds, k)
		}
	}
	for k, e := range m.flows {
		if e.expired(now) {
			delete(m.flows, k)
		}
	}
}

// Close stops the background sweep. Close is idempotent.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// janitor periodically removes expired entries.
func (m *Memory) janitor() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
