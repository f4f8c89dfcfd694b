// Package cas implements a content-addressed store on top of a flat
// byte-object backend.
//
// A stream is split into fixed-size blocks. Each block is stored once as
// <digest>.bin. A stream of zero or several blocks is also described by a
// catalog, <digest>.cat, whose content is one "<block digest>\n" record
// per block and whose name is the digest of the whole stream. A stream of
// exactly one block has no catalog: the block is the stream.
//
// Objects are committed by writing a <uuid>.tmp object and renaming it,
// so no reader sees a partial block or catalog under its final name.
package cas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/digest"
	"github.com/gezibash/scs/internal/observability"
)

// Store is a content-addressed store. It holds no state beyond its
// configuration; concurrent use is as safe as the backend.
type Store struct {
	backend   backend.Backend
	engine    *digest.Engine
	blockSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Store over b using engine for all names.
func New(b backend.Backend, engine *digest.Engine, opts ...Option) (*Store, error) {
	if b == nil {
		return nil, errors.New("cas: nil backend")
	}
	if engine == nil {
		return nil, errors.New("cas: nil digest engine")
	}
	s := &Store{
		backend:   b,
		engine:    engine,
		blockSize: DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.blockSize <= 0 {
		return nil, fmt.Errorf("cas: block size must be positive, got %d", s.blockSize)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// BlockSize returns the configured block size.
func (s *Store) BlockSize() int { return s.blockSize }

// Engine returns the digest engine.
func (s *Store) Engine() *digest.Engine { return s.engine }

// Backend returns the underlying backend.
func (s *Store) Backend() backend.Backend { return s.backend }

// commitIfAbsent stores data under name unless an object of that name
// already exists. Content addressing makes an existing object correct.
func (s *Store) commitIfAbsent(ctx context.Context, name string, data []byte, kind Kind) error {
	exists, err := s.backend.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("exists %s: %w", name, err)
	}
	if exists {
		s.metrics.CountObject(string(kind), "deduplicated")
		s.logger.DebugContext(ctx, "object exists, skipping write", "name", name)
		return nil
	}
	return s.commit(ctx, name, data, kind)
}

// commit writes data to a fresh temporary object and renames it to name.
func (s *Store) commit(ctx context.Context, name string, data []byte, kind Kind) error {
	tmp := tempName()
	if err := s.backend.Write(ctx, tmp, data); err != nil {
		s.discard(ctx, tmp)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	if err := s.backend.Rename(ctx, tmp, name); err != nil {
		s.discard(ctx, tmp)
		return fmt.Errorf("commit %s: %w", name, err)
	}
	s.metrics.CountObject(string(kind), "written")
	s.logger.DebugContext(ctx, "object committed", "name", name, "bytes", len(data))
	return nil
}

// discard removes a temporary object after a failed commit. Failure only
// leaves an orphan for GC.
func (s *Store) discard(ctx context.Context, tmp string) {
	if err := s.backend.Remove(context.WithoutCancel(ctx), tmp); err != nil {
		s.logger.WarnContext(ctx, "failed to remove temporary object", "name", tmp, "error", err)
	}
}
