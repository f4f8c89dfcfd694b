package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/backend/backendtest"
	"github.com/gezibash/scs/internal/storage"
)

func newTestBackend(t *testing.T) backend.Backend {
	t.Helper()
	b, err := NewFactory(context.Background(), storage.Merge(Defaults(), map[string]string{
		KeyPath: filepath.Join(t.TempDir(), "scs.db"),
	}))
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, newTestBackend)
}

func TestRenameOntoItself(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	if err := b.Write(ctx, "same.bin", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := b.Rename(ctx, "same.bin", "same.bin"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	got, err := b.Read(ctx, "same.bin")
	if err != nil || string(got) != "x" {
		t.Errorf("Read = %q, %v", got, err)
	}
}

func TestTeardownRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.db")
	b, err := NewFactory(context.Background(), storage.Config{KeyPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("database file still present: %v", err)
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config storage.Config
	}{
		{"empty path", storage.Config{KeyPath: ""}},
		{"bad busy timeout", storage.Config{KeyPath: filepath.Join(t.TempDir(), "a.db"), KeyBusyTimeout: "long"}},
		{"bad cache size", storage.Config{KeyPath: filepath.Join(t.TempDir(), "b.db"), KeyCacheSize: "huge"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(context.Background(), tt.config)
			var cfgErr *storage.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("err = %v, want *storage.ConfigError", err)
			}
		})
	}
}
