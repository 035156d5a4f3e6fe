package tokenstore

import (
	"context"
	"errors"
	"sync"

	"github.com/gridfront/grid-front/internal/log"
)

// Shim fronts a Store with an in-memory copy of the current token, so
// request paths never block on the backend just to read it. Backend
// write failures are logged and do not fail the operation: persistence
// is best effort, the remote API remains the source of truth.
type Shim struct {
	backend Store
	mu      sync.RWMutex
	current string
}

// NewShim wraps a backend store
func NewShim(backend Store) *Shim {
	return &Shim{backend: backend}
}

// Load pulls the persisted token into memory. It returns the token, or
// ErrNotFound when the backend holds none.
func (s *Shim) Load(ctx context.Context) (string, error) {
	token, err := s.backend.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	s.mu.Lock()
	s.current = token
	s.mu.Unlock()
	return token, nil
}

// Save sets the in-memory token and persists it
func (s *Shim) Save(ctx context.Context, token string) {
	s.mu.Lock()
	s.current = token
	s.mu.Unlock()

	if err := s.backend.Save(ctx, token); err != nil {
		log.LogWarnWithFields("tokenstore", "Failed to persist session token", map[string]any{
			"error": err.Error(),
		})
	}
}

// Clear drops the in-memory token and removes it from the backend.
// Clearing an already-empty shim is a no-op.
func (s *Shim) Clear(ctx context.Context) {
	s.mu.Lock()
	s.current = ""
	s.mu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		log.LogWarnWithFields("tokenstore", "Failed to clear persisted session token", map[string]any{
			"error": err.Error(),
		})
	}
}

// Current returns the in-memory token, or "" when none is held. Safe to
// use as a remote.ScrapingTokenFunc.
func (s *Shim) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
