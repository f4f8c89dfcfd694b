// Package redis provides a Redis-backed object backend. Each object is one
// string key holding the raw bytes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/storage"
)

const (
	KeyAddr         = "addr"
	KeyPassword     = "password"
	KeyDB           = "db"
	KeyMaxRetries   = "max_retries"
	KeyDialTimeout  = "dial_timeout"
	KeyReadTimeout  = "read_timeout"
	KeyWriteTimeout = "write_timeout"
	KeyPoolSize     = "pool_size"
	KeyKeyPrefix    = "key_prefix"

	scanBatchSize = 1000
)

func init() {
	backend.Register("redis", NewFactory, Defaults)
}

// Defaults returns the default configuration for the Redis backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:         "localhost:6379",
		KeyPassword:     "",
		KeyDB:           "0",
		KeyMaxRetries:   "3",
		KeyDialTimeout:  "5s",
		KeyReadTimeout:  "3s",
		KeyWriteTimeout: "3s",
		KeyPoolSize:     "0",
		KeyKeyPrefix:    "scs:",
	}
}

// NewFactory creates a new Redis backend from a configuration map.
func NewFactory(ctx context.Context, config storage.Config) (backend.Backend, error) {
	addr, err := config.Required("redis", KeyAddr)
	if err != nil {
		return nil, err
	}

	db, err := config.Int("redis", KeyDB, 0)
	if err != nil {
		return nil, err
	}
	if db < 0 {
		return nil, storage.NewConfigErrorWithValue("redis", KeyDB, config[KeyDB], "must be non-negative")
	}
	maxRetries, err := config.Int("redis", KeyMaxRetries, 3)
	if err != nil {
		return nil, err
	}
	dialTimeout, err := config.Duration("redis", KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	readTimeout, err := config.Duration("redis", KeyReadTimeout, 3*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := config.Duration("redis", KeyWriteTimeout, 3*time.Second)
	if err != nil {
		return nil, err
	}
	poolSize, err := config.Int("redis", KeyPoolSize, 0)
	if err != nil {
		return nil, err
	}

	keyPrefix := config.String(KeyKeyPrefix, "scs:")

	opts := &redis.Options{
		Addr:         addr,
		Password:     config.String(KeyPassword, ""),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.NewConfigErrorWithCause("redis", KeyAddr, "failed to connect", err)
	}

	slog.DebugContext(ctx, "redis backend initialized", "addr", addr, "db", db, "key_prefix", keyPrefix)

	return NewWithClient(client, keyPrefix), nil
}

// Backend is a Redis implementation of backend.Backend.
type Backend struct {
	client *redis.Client
	prefix string
	closed atomic.Bool
}

// NewWithClient creates a new backend with an existing Redis client.
func NewWithClient(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = "scs:"
	}
	return &Backend{
		client: client,
		prefix: prefix,
	}
}

func (b *Backend) key(name string) (string, error) {
	if b.closed.Load() {
		return "", backend.ErrClosed
	}
	if err := backend.CheckName(name); err != nil {
		return "", err
	}
	return b.prefix + name, nil
}

// scan visits every key under the prefix. Redis SCAN may repeat keys, so
// callers receive each key once.
func (b *Backend) scan(ctx context.Context, fn func(key string) error) error {
	seen := make(map[string]struct{})
	iter := b.client.Scan(ctx, 0, escapeGlob(b.prefix)+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if err := fn(key); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (b *Backend) List(ctx context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var names []string
	err := b.scan(ctx, func(key string) error {
		names = append(names, strings.TrimPrefix(key, b.prefix))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	return names, nil
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	key, err := b.key(name)
	if err != nil {
		return false, err
	}
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	key, err := b.key(name)
	if err != nil {
		return nil, err
	}
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis read %s: %w", name, backend.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis read: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	key, err := b.key(name)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

// Rename uses RENAME, which is atomic on the server and replaces the target.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	src, err := b.key(from)
	if err != nil {
		return err
	}
	dst, err := b.key(to)
	if err != nil {
		return err
	}
	if err := b.client.Rename(ctx, src, dst).Err(); err != nil {
		if strings.Contains(err.Error(), "no such key") {
			return fmt.Errorf("redis rename %s: %w", from, backend.ErrNotFound)
		}
		return fmt.Errorf("redis rename: %w", err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, name string) error {
	key, err := b.key(name)
	if err != nil {
		return err
	}
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis remove: %w", err)
	}
	return nil
}

func (b *Backend) Size(ctx context.Context, name string) (int64, error) {
	key, err := b.key(name)
	if err != nil {
		return 0, err
	}
	var exists *redis.IntCmd
	var strlen *redis.IntCmd
	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, key)
		strlen = pipe.StrLen(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis size: %w", err)
	}
	if exists.Val() == 0 {
		return 0, fmt.Errorf("redis size %s: %w", name, backend.ErrNotFound)
	}
	return strlen.Val(), nil
}

// Stats returns storage statistics.
func (b *Backend) Stats(ctx context.Context) (*backend.Stats, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var keys []string
	if err := b.scan(ctx, func(key string) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("redis stats: %w", err)
	}

	var total int64
	for start := 0; start < len(keys); start += scanBatchSize {
		end := min(start+scanBatchSize, len(keys))
		cmds, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range keys[start:end] {
				pipe.StrLen(ctx, key)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("redis stats: %w", err)
		}
		for _, cmd := range cmds {
			total += cmd.(*redis.IntCmd).Val()
		}
	}

	return &backend.Stats{
		SizeBytes:   total,
		BackendType: "redis",
	}, nil
}

// Teardown only checks emptiness; a key prefix has nothing to release.
func (b *Backend) Teardown(ctx context.Context) error {
	names, err := b.List(ctx)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return fmt.Errorf("redis teardown: %d keys under %q: %w", len(names), b.prefix, backend.ErrNotEmpty)
	}
	return nil
}

// Close closes the client. Subsequent calls are no-ops.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.client.Close()
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
