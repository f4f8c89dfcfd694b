// Package memory provides an in-memory backend for tests and self-checks.
package memory

import (
	"context"
	"maps"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/backend/badger"
	"github.com/gezibash/scs/internal/storage"
)

func init() {
	backend.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() map[string]string {
	return map[string]string{
		badger.KeyInMemory: "true",
	}
}

// NewFactory creates a new in-memory backend using BadgerDB's in-memory mode.
func NewFactory(ctx context.Context, config storage.Config) (backend.Backend, error) {
	cfg := maps.Clone(config)
	if cfg == nil {
		cfg = storage.Config{}
	}
	cfg[badger.KeyInMemory] = "true"
	return badger.NewFactory(ctx, cfg)
}
