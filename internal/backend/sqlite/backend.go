// Package sqlite provides a SQLite-backed object backend using the
// cgo-free modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/storage"
)

const (
	KeyPath        = "path"
	KeyJournalMode = "journal_mode"
	KeyBusyTimeout = "busy_timeout"
	KeyCacheSize   = "cache_size"
)

func init() {
	backend.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:        "~/.scs.db",
		KeyJournalMode: "wal",
		KeyBusyTimeout: "5000",
		KeyCacheSize:   "-64000",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS objects (
    name  TEXT PRIMARY KEY,
    data  BLOB NOT NULL
);
`

// NewFactory creates a new SQLite backend from a configuration map.
func NewFactory(ctx context.Context, config storage.Config) (backend.Backend, error) {
	path, err := config.Required("sqlite", KeyPath)
	if err != nil {
		return nil, err
	}
	path = storage.ExpandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to create directory", err)
	}

	journalMode := config.String(KeyJournalMode, "wal")
	busyTimeout, err := config.Int("sqlite", KeyBusyTimeout, 5000)
	if err != nil {
		return nil, err
	}
	cacheSize, err := config.Int("sqlite", KeyCacheSize, -64000)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)&_pragma=cache_size(%d)",
		path, journalMode, busyTimeout, cacheSize)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to open database", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to initialize schema", err)
	}

	slog.DebugContext(ctx, "sqlite backend initialized", "path", path, "journal_mode", journalMode)
	return &Backend{db: db, path: path}, nil
}

// Backend is a SQLite implementation of backend.Backend.
type Backend struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

func (b *Backend) check(names ...string) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	for _, name := range names {
		if err := backend.CheckName(name); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) List(ctx context.Context) ([]string, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM objects`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite list: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	return names, nil
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	if err := b.check(name); err != nil {
		return false, err
	}
	var one int
	err := b.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite exists: %w", err)
	}
	return true, nil
}

func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	if err := b.check(name); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM objects WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite read %s: %w", name, backend.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	if err := b.check(name); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO objects (name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`, name, data)
	if err != nil {
		return fmt.Errorf("sqlite write: %w", err)
	}
	return nil
}

// Rename replaces to with from inside one transaction.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := b.check(from, to); err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite rename: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if from == to {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE name = ?`, from).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite rename %s: %w", from, backend.ErrNotFound)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE name = ?`, to); err != nil {
		return fmt.Errorf("sqlite rename: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE objects SET name = ? WHERE name = ?`, to, from)
	if err != nil {
		return fmt.Errorf("sqlite rename: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite rename: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite rename %s: %w", from, backend.ErrNotFound)
	}
	return tx.Commit()
}

func (b *Backend) Remove(ctx context.Context, name string) error {
	if err := b.check(name); err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM objects WHERE name = ?`, name); err != nil {
		return fmt.Errorf("sqlite remove: %w", err)
	}
	return nil
}

func (b *Backend) Size(ctx context.Context, name string) (int64, error) {
	if err := b.check(name); err != nil {
		return 0, err
	}
	var size int64
	err := b.db.QueryRowContext(ctx, `SELECT length(data) FROM objects WHERE name = ?`, name).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite size %s: %w", name, backend.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite size: %w", err)
	}
	return size, nil
}

// Stats returns storage statistics.
func (b *Backend) Stats(ctx context.Context) (*backend.Stats, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	var total int64
	err := b.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(length(data)), 0) FROM objects`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("sqlite stats: %w", err)
	}
	return &backend.Stats{
		SizeBytes:   total,
		BackendType: "sqlite",
	}, nil
}

// Teardown closes the database and removes its files once it holds no objects.
func (b *Backend) Teardown(ctx context.Context) error {
	if err := b.check(); err != nil {
		return err
	}
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return fmt.Errorf("sqlite teardown: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("sqlite teardown: %d objects: %w", n, backend.ErrNotEmpty)
	}
	if err := b.Close(); err != nil {
		return fmt.Errorf("sqlite teardown: %w", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(b.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("sqlite teardown: %w", err)
		}
	}
	return nil
}

// Close closes the database. Subsequent calls are no-ops.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
