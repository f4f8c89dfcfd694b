package cas

import (
	"context"
	"fmt"
	"io"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/scs/internal/observability"
)

// CheckReport summarizes a successful Check.
type CheckReport struct {
	Blocks    int      `json:"blocks" yaml:"blocks"`
	Catalogs  int      `json:"catalogs" yaml:"catalogs"`
	Bytes     int64    `json:"bytes_verified" yaml:"bytes_verified"`
	Temporary []string `json:"temporary,omitempty" yaml:"temporary,omitempty"`
	Unknown   []string `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

// Check verifies every block and catalog in the backend, in name order,
// and stops at the first failure. Temporary and unrecognized names are
// reported but are not failures.
func (s *Store) Check(ctx context.Context) (_ *CheckReport, err error) {
	op, ctx := observability.StartOperation(ctx, s.logger, s.metrics, "check")
	defer func() { op.End(err) }()

	names, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	slices.Sort(names)
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
	}

	report := &CheckReport{}
	for _, name := range names {
		kind, d := s.Classify(name)
		switch kind {
		case KindBlock, KindCatalog:
			if kind == KindCatalog {
				if _, dup := present[blockName(d)]; dup {
					s.metrics.CountError("check", "redundant")
					return nil, fmt.Errorf("%w: both %s and %s exist", ErrRedundantObject, blockName(d), catalogName(d))
				}
			}
			n, err := s.verify(ctx, d)
			if err != nil {
				return nil, fmt.Errorf("check %s: %w", name, err)
			}
			if kind == KindBlock {
				report.Blocks++
			} else {
				report.Catalogs++
			}
			report.Bytes += n
			s.metrics.CountObject(string(kind), "verified")
			s.logger.DebugContext(ctx, "object verified", "name", name, "bytes", n)
		case KindTemporary:
			report.Temporary = append(report.Temporary, name)
			s.logger.WarnContext(ctx, "stale temporary object", "name", name)
		default:
			report.Unknown = append(report.Unknown, name)
			s.logger.WarnContext(ctx, "unrecognized object name", "name", name)
		}
	}

	op.Span().SetAttributes(
		attribute.Int("blocks", report.Blocks),
		attribute.Int("catalogs", report.Catalogs),
		attribute.Int64("bytes", report.Bytes),
	)
	return report, nil
}

// verify fully drains d and returns the number of bytes hashed.
func (s *Store) verify(ctx context.Context, d string) (int64, error) {
	r, err := s.Load(ctx, d)
	if err != nil {
		return 0, err
	}
	return r.WriteTo(io.Discard)
}
