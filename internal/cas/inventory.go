package cas

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gezibash/scs/internal/backend"
)

// Object describes one name in the backend.
type Object struct {
	Name   string `json:"name" yaml:"name"`
	Kind   Kind   `json:"kind" yaml:"kind"`
	Digest string `json:"digest,omitempty" yaml:"digest,omitempty"`
	Size   int64  `json:"size" yaml:"size"`
}

// Objects lists every name in the backend with its classification and
// size, in name order. Names removed while listing are skipped.
func (s *Store) Objects(ctx context.Context) ([]Object, error) {
	names, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	slices.Sort(names)

	objects := make([]Object, 0, len(names))
	for _, name := range names {
		kind, d := s.Classify(name)
		obj := Object{Name: name, Kind: kind, Digest: d}
		if backend.CheckName(name) == nil {
			size, err := s.backend.Size(ctx, name)
			if errors.Is(err, backend.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("size %s: %w", name, err)
			}
			obj.Size = size
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
