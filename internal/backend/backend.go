// Package backend defines the flat byte-object namespace the store is built
// on, and a registry of adapters that implement it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound indicates the named object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("backend closed")

	// ErrInvalidName indicates a name outside the [0-9a-z.-] alphabet.
	ErrInvalidName = errors.New("invalid object name")

	// ErrNotEmpty is returned by Teardown while objects remain.
	ErrNotEmpty = errors.New("backend not empty")
)

var namePattern = regexp.MustCompile(`^[0-9a-z.-]+$`)

// CheckName validates an object name.
func CheckName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Stats contains storage statistics.
type Stats struct {
	SizeBytes   int64
	BackendType string
}

// Backend is a flat namespace of named byte objects.
// All implementations must be safe for concurrent use.
type Backend interface {
	// List returns every object name, in no particular order.
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
	Read(ctx context.Context, name string) ([]byte, error)
	// Write creates or overwrites name.
	Write(ctx context.Context, name string, data []byte) error
	// Rename atomically moves from to to, replacing any existing to.
	// A missing source yields ErrNotFound.
	Rename(ctx context.Context, from, to string) error
	// Remove deletes name. Removing a missing object is not an error.
	Remove(ctx context.Context, name string) error
	Size(ctx context.Context, name string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	// Teardown releases the namespace itself. It fails with ErrNotEmpty
	// while any object remains.
	Teardown(ctx context.Context) error
	Close() error
}
