// Package tokenstore persists the opaque scraping session token across
// restarts. The token is the only thing stored; credentials and cookies
// never leave the remote API.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridfront/grid-front/internal/config"
)

// ErrNotFound is returned by Load when no token has been saved
var ErrNotFound = errors.New("no persisted session token")

// Store is a single-slot token backend. Clear on an empty store is not
// an error.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// New builds the backend selected by the config
func New(ctx context.Context, cfg config.TokenStoreConfig) (Store, error) {
	switch cfg.Kind {
	case "", config.TokenStoreMemory:
		return NewMemoryStore(), nil
	case config.TokenStoreFile:
		return NewFileStore(cfg.Path), nil
	case config.TokenStoreRedis:
		return NewRedisStore(cfg.RedisAddr, string(cfg.RedisPassword), cfg.RedisDB)
	case config.TokenStoreFirestore:
		return NewFirestoreStore(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection, cfg.FirestoreCredentials)
	default:
		return nil, fmt.Errorf("unknown token store kind: %s", cfg.Kind)
	}
}
