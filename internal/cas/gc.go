package cas

import (
	"context"
	"fmt"
	"slices"

	"github.com/gezibash/scs/internal/observability"
)

// Roots selects what garbage collection must preserve. Only AllRoots is
// implemented; a restricted set is rejected rather than half-honored.
type Roots struct {
	all     bool
	digests []string
}

// AllRoots treats every committed object as reachable.
func AllRoots() Roots { return Roots{all: true} }

// RootSet names an explicit reachable set. GC rejects it with
// ErrNotImplemented.
func RootSet(digests ...string) Roots { return Roots{digests: digests} }

// GCReport lists what a collection did.
type GCReport struct {
	Removed []string `json:"removed" yaml:"removed"`
	Kept    int      `json:"kept" yaml:"kept"`
	Unknown []string `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

// GC removes temporary objects. Blocks and catalogs are never touched, and
// unrecognized names are only reported.
//
// GC does not coordinate with concurrent Put calls: the temporary object
// of an in-flight store can be removed, failing that store.
func (s *Store) GC(ctx context.Context, roots Roots) (_ *GCReport, err error) {
	op, ctx := observability.StartOperation(ctx, s.logger, s.metrics, "gc")
	defer func() { op.End(err) }()

	if !roots.all {
		return nil, fmt.Errorf("%w: collection with a reachable set of %d digests; use AllRoots", ErrNotImplemented, len(roots.digests))
	}

	names, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	slices.Sort(names)

	report := &GCReport{Removed: []string{}}
	for _, name := range names {
		kind, _ := s.Classify(name)
		switch kind {
		case KindBlock, KindCatalog:
			report.Kept++
		case KindTemporary:
			if err := s.backend.Remove(ctx, name); err != nil {
				return nil, fmt.Errorf("remove %s: %w", name, err)
			}
			report.Removed = append(report.Removed, name)
			s.metrics.CountObject(string(KindTemporary), "removed")
			s.logger.InfoContext(ctx, "removed temporary object", "name", name)
		default:
			report.Unknown = append(report.Unknown, name)
			s.logger.WarnContext(ctx, "unrecognized object name, leaving in place", "name", name)
		}
	}
	return report, nil
}
