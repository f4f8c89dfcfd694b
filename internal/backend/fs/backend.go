// Package fs provides a flat-directory backend: one file per object.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/storage"
)

const (
	KeyPath            = "path"
	KeyDirPermissions  = "dir_permissions"
	KeyFilePermissions = "file_permissions"
)

func init() {
	backend.Register("fs", NewFactory, Defaults)
}

// Defaults returns the default configuration for the filesystem backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:            "~/.scs",
		KeyDirPermissions:  "0700",
		KeyFilePermissions: "0600",
	}
}

// NewFactory creates a new filesystem backend from a configuration map.
func NewFactory(ctx context.Context, config storage.Config) (backend.Backend, error) {
	path, err := config.Required("fs", KeyPath)
	if err != nil {
		return nil, err
	}
	path = storage.ExpandPath(path)

	dirPerms, err := config.FileMode("fs", KeyDirPermissions, 0o700)
	if err != nil {
		return nil, err
	}
	filePerms, err := config.FileMode("fs", KeyFilePermissions, 0o600)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(path, dirPerms); err != nil {
		return nil, storage.NewConfigErrorWithCause("fs", KeyPath, "failed to create directory", err)
	}

	slog.DebugContext(ctx, "fs backend initialized", "path", path, "dir_permissions", fmt.Sprintf("%04o", dirPerms), "file_permissions", fmt.Sprintf("%04o", filePerms))

	return &Backend{
		rootPath:  path,
		filePerms: filePerms,
	}, nil
}

// Backend is a filesystem implementation of backend.Backend.
type Backend struct {
	rootPath  string
	filePerms os.FileMode
	closed    atomic.Bool
}

// Path returns the directory holding the objects.
func (b *Backend) Path() string { return b.rootPath }

func (b *Backend) objectPath(name string) (string, error) {
	if b.closed.Load() {
		return "", backend.ErrClosed
	}
	if err := backend.CheckName(name); err != nil {
		return "", err
	}
	return filepath.Join(b.rootPath, name), nil
}

// List returns the names of regular files in the directory.
func (b *Backend) List(_ context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	entries, err := os.ReadDir(b.rootPath)
	if err != nil {
		return nil, fmt.Errorf("fs list: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (b *Backend) Exists(_ context.Context, name string) (bool, error) {
	path, err := b.objectPath(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("fs exists: %w", err)
	}
	return true, nil
}

func (b *Backend) Read(_ context.Context, name string) ([]byte, error) {
	path, err := b.objectPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("fs read %s: %w", name, backend.ErrNotFound)
		}
		return nil, fmt.Errorf("fs read: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(_ context.Context, name string, data []byte) error {
	path, err := b.objectPath(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, b.filePerms)
	if err != nil {
		return fmt.Errorf("fs write: %w", err)
	}
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("fs write: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("fs write: %w", closeErr)
	}
	return nil
}

// Rename uses rename(2), which replaces the destination atomically.
func (b *Backend) Rename(_ context.Context, from, to string) error {
	src, err := b.objectPath(from)
	if err != nil {
		return err
	}
	dst, err := b.objectPath(to)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("fs rename %s: %w", from, backend.ErrNotFound)
		}
		return fmt.Errorf("fs rename: %w", err)
	}
	return nil
}

func (b *Backend) Remove(_ context.Context, name string) error {
	path, err := b.objectPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fs remove: %w", err)
	}
	return nil
}

func (b *Backend) Size(_ context.Context, name string) (int64, error) {
	path, err := b.objectPath(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("fs size %s: %w", name, backend.ErrNotFound)
		}
		return 0, fmt.Errorf("fs size: %w", err)
	}
	return info.Size(), nil
}

// Stats returns storage statistics.
func (b *Backend) Stats(_ context.Context) (*backend.Stats, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	entries, err := os.ReadDir(b.rootPath)
	if err != nil {
		return nil, fmt.Errorf("fs stats: %w", err)
	}
	var totalSize int64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("fs stats: %w", err)
		}
		totalSize += info.Size()
	}
	return &backend.Stats{
		SizeBytes:   totalSize,
		BackendType: "fs",
	}, nil
}

// Teardown removes the directory once it is empty.
func (b *Backend) Teardown(_ context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	entries, err := os.ReadDir(b.rootPath)
	if err != nil {
		return fmt.Errorf("fs teardown: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("fs teardown %s: %d entries: %w", b.rootPath, len(entries), backend.ErrNotEmpty)
	}
	if err := os.Remove(b.rootPath); err != nil {
		return fmt.Errorf("fs teardown: %w", err)
	}
	return nil
}

// Close marks the backend as closed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
