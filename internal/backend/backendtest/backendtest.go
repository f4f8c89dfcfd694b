// Package backendtest holds the behavior every backend adapter must share.
package backendtest

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gezibash/scs/internal/backend"
)

// NewFunc returns a fresh, empty backend. Cleanup is the caller's concern.
type NewFunc func(t *testing.T) backend.Backend

// Run exercises the backend contract against fresh instances from newFn.
func Run(t *testing.T, newFn NewFunc) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, b backend.Backend)
	}{
		{"WriteRead", testWriteRead},
		{"EmptyObject", testEmptyObject},
		{"Overwrite", testOverwrite},
		{"Missing", testMissing},
		{"List", testList},
		{"Rename", testRename},
		{"RenameOverwrites", testRenameOverwrites},
		{"RenameMissing", testRenameMissing},
		{"RemoveIdempotent", testRemoveIdempotent},
		{"InvalidNames", testInvalidNames},
		{"Stats", testStats},
		{"Teardown", testTeardown},
		{"Closed", testClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newFn(t))
		})
	}
}

func mustWrite(t *testing.T, b backend.Backend, name string, data []byte) {
	t.Helper()
	if err := b.Write(context.Background(), name, data); err != nil {
		t.Fatalf("Write(%s): %v", name, err)
	}
}

func testWriteRead(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	data := []byte("hello world")
	mustWrite(t, b, "a.bin", data)

	got, err := b.Read(ctx, "a.bin")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read = %q, want %q", got, data)
	}

	ok, err := b.Exists(ctx, "a.bin")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}

	size, err := b.Size(ctx, "a.bin")
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", size, len(data))
	}
}

func testEmptyObject(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	mustWrite(t, b, "empty.cat", nil)

	ok, err := b.Exists(ctx, "empty.cat")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	got, err := b.Read(ctx, "empty.cat")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read = %q, want empty", got)
	}
	size, err := b.Size(ctx, "empty.cat")
	if err != nil || size != 0 {
		t.Errorf("Size = %d, %v", size, err)
	}
}

func testOverwrite(t *testing.T, b backend.Backend) {
	mustWrite(t, b, "o.bin", []byte("first"))
	mustWrite(t, b, "o.bin", []byte("second"))

	got, err := b.Read(context.Background(), "o.bin")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Read = %q, want second", got)
	}
}

func testMissing(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	if _, err := b.Read(ctx, "nope.bin"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Read missing = %v, want ErrNotFound", err)
	}
	if _, err := b.Size(ctx, "nope.bin"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Size missing = %v, want ErrNotFound", err)
	}
	ok, err := b.Exists(ctx, "nope.bin")
	if err != nil || ok {
		t.Errorf("Exists missing = %v, %v", ok, err)
	}
}

func testList(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	names, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("fresh backend lists %v", names)
	}

	want := []string{"a.bin", "b.cat", "c.tmp"}
	for _, name := range want {
		mustWrite(t, b, name, []byte(name))
	}
	names, err = b.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	slices.Sort(names)
	if !slices.Equal(names, want) {
		t.Errorf("List = %v, want %v", names, want)
	}
}

func testRename(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	mustWrite(t, b, "x.tmp", []byte("payload"))
	if err := b.Rename(ctx, "x.tmp", "x.bin"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if ok, _ := b.Exists(ctx, "x.tmp"); ok {
		t.Error("source still exists after rename")
	}
	got, err := b.Read(ctx, "x.bin")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Read = %q", got)
	}
}

func testRenameOverwrites(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	mustWrite(t, b, "dst.bin", []byte("old"))
	mustWrite(t, b, "src.tmp", []byte("new"))
	if err := b.Rename(ctx, "src.tmp", "dst.bin"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	got, err := b.Read(ctx, "dst.bin")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Read = %q, want new", got)
	}
	names, _ := b.List(ctx)
	if len(names) != 1 {
		t.Errorf("List = %v, want only dst.bin", names)
	}
}

func testRenameMissing(t *testing.T, b backend.Backend) {
	err := b.Rename(context.Background(), "ghost.tmp", "ghost.bin")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Rename missing = %v, want ErrNotFound", err)
	}
}

func testRemoveIdempotent(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	mustWrite(t, b, "r.bin", []byte("x"))
	if err := b.Remove(ctx, "r.bin"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := b.Remove(ctx, "r.bin"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
	if ok, _ := b.Exists(ctx, "r.bin"); ok {
		t.Error("object exists after Remove")
	}
}

func testInvalidNames(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	for _, name := range []string{"", "../etc", "A.bin", "a/b"} {
		if err := b.Write(ctx, name, []byte("x")); !errors.Is(err, backend.ErrInvalidName) {
			t.Errorf("Write(%q) = %v, want ErrInvalidName", name, err)
		}
		if _, err := b.Read(ctx, name); !errors.Is(err, backend.ErrInvalidName) {
			t.Errorf("Read(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	mustWrite(t, b, "ok.bin", []byte("x"))
	if err := b.Rename(ctx, "ok.bin", "Bad"); !errors.Is(err, backend.ErrInvalidName) {
		t.Errorf("Rename to invalid = %v, want ErrInvalidName", err)
	}
}

func testStats(t *testing.T, b backend.Backend) {
	mustWrite(t, b, "s1.bin", []byte("12345"))
	mustWrite(t, b, "s2.bin", []byte("123"))
	stats, err := b.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.BackendType == "" {
		t.Error("empty BackendType")
	}
	if stats.SizeBytes < 8 {
		t.Errorf("SizeBytes = %d, want >= 8", stats.SizeBytes)
	}
}

func testTeardown(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	mustWrite(t, b, "t.bin", []byte("x"))
	if err := b.Teardown(ctx); !errors.Is(err, backend.ErrNotEmpty) {
		t.Fatalf("Teardown non-empty = %v, want ErrNotEmpty", err)
	}
	if err := b.Remove(ctx, "t.bin"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := b.Teardown(ctx); err != nil {
		t.Errorf("Teardown empty: %v", err)
	}
}

func testClosed(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Write(ctx, "c.bin", []byte("x")); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	if _, err := b.Read(ctx, "c.bin"); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("Read after Close = %v, want ErrClosed", err)
	}
	if _, err := b.List(ctx); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("List after Close = %v, want ErrClosed", err)
	}
}
