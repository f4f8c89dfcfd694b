package cas

import (
	"log/slog"

	"github.com/gezibash/scs/internal/observability"
)

// DefaultBlockSize is the block size used when none is configured.
const DefaultBlockSize = 64 * 1024

// Option configures a Store.
type Option func(*Store)

// WithBlockSize sets the size inputs are split at. It must be positive.
func WithBlockSize(n int) Option {
	return func(s *Store) {
		s.blockSize = n
	}
}

// WithLogger sets the logger for store operations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMetrics records store operations in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}
