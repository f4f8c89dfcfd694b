// Package badger provides a BadgerDB-backed object backend.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/storage"
)

const keyPrefix = "obj/"

const (
	KeyPath             = "path"
	KeySyncWrites       = "sync_writes"
	KeyValueLogFileSize = "value_log_file_size"
	KeyMemTableSize     = "mem_table_size"
	KeyInMemory         = "in_memory"
)

func init() {
	backend.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:             "~/.scs-badger",
		KeySyncWrites:       "true",
		KeyValueLogFileSize: strconv.FormatInt(1<<30, 10),
		KeyMemTableSize:     strconv.FormatInt(64<<20, 10),
		KeyInMemory:         "false",
	}
}

// NewFactory creates a new BadgerDB backend from a configuration map.
func NewFactory(ctx context.Context, config storage.Config) (backend.Backend, error) {
	inMemory, err := config.Bool("badger", KeyInMemory, false)
	if err != nil {
		return nil, err
	}
	if inMemory {
		return newInMemory(ctx)
	}

	path, err := config.Required("badger", KeyPath)
	if err != nil {
		return nil, err
	}
	path = storage.ExpandPath(path)

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to create directory", err)
	}

	syncWrites, err := config.Bool("badger", KeySyncWrites, true)
	if err != nil {
		return nil, err
	}
	valueLogFileSize, err := config.Int64("badger", KeyValueLogFileSize, 1<<30)
	if err != nil {
		return nil, err
	}
	memTableSize, err := config.Int64("badger", KeyMemTableSize, 64<<20)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = syncWrites
	if valueLogFileSize > 0 {
		opts.ValueLogFileSize = valueLogFileSize
	}
	if memTableSize > 0 {
		opts.MemTableSize = memTableSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to open database", err)
	}

	slog.DebugContext(ctx, "badger backend initialized", "path", path, "sync_writes", syncWrites)
	b := NewWithDB(db)
	b.path = path
	return b, nil
}

func newInMemory(ctx context.Context) (*Backend, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyInMemory, "failed to open in-memory database", err)
	}

	slog.DebugContext(ctx, "badger backend initialized (in-memory)")
	b := NewWithDB(db)
	b.backendType = "memory"
	return b, nil
}

// Backend is a BadgerDB implementation of backend.Backend.
// Objects live under the "obj/" key prefix.
type Backend struct {
	db          *badger.DB
	path        string // empty when in-memory
	backendType string
	closed      atomic.Bool
}

// NewWithDB creates a new backend with an existing BadgerDB instance.
func NewWithDB(db *badger.DB) *Backend {
	return &Backend{db: db, backendType: "badger"}
}

func (b *Backend) key(name string) ([]byte, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	if err := backend.CheckName(name); err != nil {
		return nil, err
	}
	return []byte(keyPrefix + name), nil
}

func (b *Backend) List(_ context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var names []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list: %w", err)
	}
	return names, nil
}

func (b *Backend) Exists(_ context.Context, name string) (bool, error) {
	key, err := b.key(name)
	if err != nil {
		return false, err
	}
	err = b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger exists: %w", err)
	}
	return true, nil
}

func (b *Backend) Read(_ context.Context, name string) ([]byte, error) {
	key, err := b.key(name)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("badger read %s: %w", name, backend.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("badger read: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(_ context.Context, name string, data []byte) error {
	key, err := b.key(name)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("badger write: %w", err)
	}
	return nil
}

// Rename copies and deletes inside one read-write transaction.
func (b *Backend) Rename(_ context.Context, from, to string) error {
	src, err := b.key(from)
	if err != nil {
		return err
	}
	dst, err := b.key(to)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(src)
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Set(dst, data); err != nil {
			return err
		}
		return txn.Delete(src)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("badger rename %s: %w", from, backend.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("badger rename: %w", err)
	}
	return nil
}

func (b *Backend) Remove(_ context.Context, name string) error {
	key, err := b.key(name)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger remove: %w", err)
	}
	return nil
}

func (b *Backend) Size(_ context.Context, name string) (int64, error) {
	key, err := b.key(name)
	if err != nil {
		return 0, err
	}
	var size int64
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		size = item.ValueSize()
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("badger size %s: %w", name, backend.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("badger size: %w", err)
	}
	return size, nil
}

// Stats sums value sizes; badger's LSM/vlog sizes lag behind writes.
func (b *Backend) Stats(_ context.Context) (*backend.Stats, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var total int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			total += it.Item().ValueSize()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger stats: %w", err)
	}
	return &backend.Stats{
		SizeBytes:   total,
		BackendType: b.backendType,
	}, nil
}

// Teardown closes the database and, when on disk, removes its directory.
func (b *Backend) Teardown(ctx context.Context) error {
	names, err := b.List(ctx)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return fmt.Errorf("badger teardown: %d objects: %w", len(names), backend.ErrNotEmpty)
	}
	if err := b.Close(); err != nil {
		return err
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("badger teardown: %w", err)
		}
	}
	return nil
}

// Close closes the database. Subsequent calls are no-ops.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}
