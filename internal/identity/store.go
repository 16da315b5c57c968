// Package identity holds the device-wide user identifier used to tag stored runs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/miradorstack/risk-client/internal/cache"
)

const (
	// DefaultKey is the storage key of the persisted identifier.
	DefaultKey = "risk_user_id"
	// DefaultFallback is used when nothing has been persisted yet.
	DefaultFallback = "demo-user"
)

// Store is the single identity of this device. The first Get loads it from
// the provider, seeding the fallback when nothing is stored; Set writes
// through immediately. Safe for concurrent use.
type Store struct {
	provider cache.Provider
	key      string
	fallback string

	mu     sync.Mutex
	loaded bool
	value  string
}

// Option customises a Store.
type Option func(*Store)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithFallback overrides the fallback identifier.
func WithFallback(v string) Option {
	return func(s *Store) {
		if v != "" {
			s.fallback = v
		}
	}
}

// NewStore builds a Store over provider. A nil provider never persists.
func NewStore(provider cache.Provider, opts ...Option) *Store {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	s := &Store{provider: provider, key: DefaultKey, fallback: DefaultFallback}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current identifier.
func (s *Store) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.value, nil
	}
	v, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	s.value, s.loaded = v, true
	return v, nil
}

func (s *Store) load(ctx context.Context) (string, error) {
	data, err := s.provider.Get(ctx, s.key)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return "", fmt.Errorf("read identity %q: %w", s.key, err)
	}

	stored, err := s.provider.SetNX(ctx, s.key, []byte(s.fallback), 0)
	if err != nil {
		return "", fmt.Errorf("seed identity %q: %w", s.key, err)
	}
	if stored {
		return s.fallback, nil
	}
	// Another writer seeded the key between our read and write.
	data, err = s.provider.Get(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("read identity %q: %w", s.key, err)
	}
	return string(data), nil
}

// Set replaces the identifier and persists it. The value is not validated.
func (s *Store) Set(ctx context.Context, v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.provider.Set(ctx, s.key, []byte(v), 0); err != nil {
		return fmt.Errorf("persist identity %q: %w", s.key, err)
	}
	s.value, s.loaded = v, true
	return nil
}

// Forget removes the persisted identifier. The in-memory value is kept for the
// rest of the session; the next session starts from the fallback.
func (s *Store) Forget(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.provider.Del(ctx, s.key); err != nil {
		return fmt.Errorf("forget identity %q: %w", s.key, err)
	}
	return nil
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }
