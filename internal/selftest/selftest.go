// Package selftest runs the built-in end-to-end check of the store against
// a fresh backend: a fixed set of contents with known sha1 digests and a
// block size of 10.
package selftest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/cas"
	"github.com/gezibash/scs/internal/digest"
	"github.com/gezibash/scs/internal/observability"
)

// ErrFailed marks a self-test expectation that did not hold.
var ErrFailed = errors.New("self-test failed")

// Factory opens a fresh, empty backend for one run.
type Factory func(ctx context.Context) (backend.Backend, error)

const (
	blockSize = 10
	algorithm = "sha1"

	dEmpty      = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
	d1          = "356a192b7913b04c54574d18c28d46e6395428ab"
	d123456789  = "f7c3bc1d808e04732adf679965ccc34ca7ae3441"
	d1234567890 = "01b307acba4f54f55aafc33bb06bbbf6ca803e9a"
	d11         = "266dc053a8163e676e83243070241c8917f8a8a3"
	dAbc19      = "691bef900d9d408fb4c74f9f503ccd79ab440c4b"
	dAbc20      = "787d559439cfd927780996d2c78f635acca40c37"
	dAbc21      = "7ff1b2bc3f8b9f0f40260f91714bc4d2250aab84"
	dAbcdefghij = "d68c19a0a345b7eab78d5e11e991c026ec60db63"
)

// Fixture maps each stored content to its digest.
var Fixture = []struct {
	Content string
	Digest  string
}{
	{"", dEmpty},
	{"1", d1},
	{"123456789", d123456789},
	{"1234567890", d1234567890},
	{"12345678901", d11},
	{"abcdefghij123456789", dAbc19},
	{"abcdefghij1234567890", dAbc20},
	{"abcdefghij12345678901", dAbc21},
}

// Layout is the exact object set the fixture produces.
var Layout = map[string]string{
	d1 + ".bin":          "1",
	d123456789 + ".bin":  "123456789",
	d1234567890 + ".bin": "1234567890",
	dAbcdefghij + ".bin": "abcdefghij",
	dEmpty + ".cat":      "",
	d11 + ".cat":         d1234567890 + "\n" + d1 + "\n",
	dAbc19 + ".cat":      dAbcdefghij + "\n" + d123456789 + "\n",
	dAbc20 + ".cat":      dAbcdefghij + "\n" + d1234567890 + "\n",
	dAbc21 + ".cat":      dAbcdefghij + "\n" + d1234567890 + "\n" + d1 + "\n",
}

type step struct {
	name string
	run  func(ctx context.Context, s *cas.Store) error
}

var steps = []step{
	{"store", stepStore},
	{"layout", stepLayout},
	{"load", stepLoad},
	{"check", stepCheck},
	{"gc", stepGC},
	{"corruption", stepCorruption},
}

// Run opens a backend with newBackend, runs every step against it, and
// empties and tears the backend down afterwards.
func Run(ctx context.Context, logger *slog.Logger, newBackend Factory) (err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	op, ctx := observability.StartOperation(ctx, logger, nil, "selftest")
	defer func() { op.End(err) }()

	b, err := newBackend(ctx)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer func() {
		err = errors.Join(err, cleanup(context.WithoutCancel(ctx), b))
	}()

	engine, err := digest.New(algorithm)
	if err != nil {
		return err
	}
	// The store logs expected failures during the corruption step; keep them
	// below the caller's level.
	store, err := cas.New(b, engine, cas.WithBlockSize(blockSize), cas.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		return err
	}

	for _, st := range steps {
		if err := st.run(ctx, store); err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
		logger.DebugContext(ctx, "self-test step passed", "step", st.name)
	}
	logger.InfoContext(ctx, "self-test passed", "objects", len(Layout))
	return nil
}

func stepStore(ctx context.Context, s *cas.Store) error {
	for _, f := range Fixture {
		got, err := s.Put(ctx, bytes.NewReader([]byte(f.Content)))
		if err != nil {
			return err
		}
		if got != f.Digest {
			return fmt.Errorf("%w: store %q = %s, want %s", ErrFailed, f.Content, got, f.Digest)
		}
	}
	return nil
}

func stepLayout(ctx context.Context, s *cas.Store) error {
	b := s.Backend()
	names, err := b.List(ctx)
	if err != nil {
		return err
	}
	slices.Sort(names)
	want := slices.Sorted(maps.Keys(Layout))
	if !slices.Equal(names, want) {
		return fmt.Errorf("%w: objects %v, want %v", ErrFailed, names, want)
	}
	for _, name := range names {
		data, err := b.Read(ctx, name)
		if err != nil {
			return err
		}
		if string(data) != Layout[name] {
			return fmt.Errorf("%w: %s holds %q, want %q", ErrFailed, name, data, Layout[name])
		}
	}
	return nil
}

func stepLoad(ctx context.Context, s *cas.Store) error {
	for _, f := range Fixture {
		data, err := s.Get(ctx, f.Digest)
		if err != nil {
			return err
		}
		if string(data) != f.Content {
			return fmt.Errorf("%w: load %s = %q, want %q", ErrFailed, f.Digest, data, f.Content)
		}
	}
	return nil
}

func stepCheck(ctx context.Context, s *cas.Store) error {
	report, err := s.Check(ctx)
	if err != nil {
		return err
	}
	if report.Blocks != 4 || report.Catalogs != 5 {
		return fmt.Errorf("%w: check saw %d blocks and %d catalogs, want 4 and 5", ErrFailed, report.Blocks, report.Catalogs)
	}
	if len(report.Temporary)+len(report.Unknown) != 0 {
		return fmt.Errorf("%w: check reported stray names %v %v", ErrFailed, report.Temporary, report.Unknown)
	}
	return nil
}

func stepGC(ctx context.Context, s *cas.Store) error {
	b := s.Backend()
	stale := uuid.NewString() + ".tmp"
	if err := b.Write(ctx, stale, nil); err != nil {
		return err
	}

	report, err := s.Check(ctx)
	if err != nil {
		return fmt.Errorf("check with a stale temporary: %w", err)
	}
	if !slices.Equal(report.Temporary, []string{stale}) {
		return fmt.Errorf("%w: check temporaries %v, want [%s]", ErrFailed, report.Temporary, stale)
	}

	gc, err := s.GC(ctx, cas.AllRoots())
	if err != nil {
		return err
	}
	if !slices.Equal(gc.Removed, []string{stale}) || gc.Kept != len(Layout) {
		return fmt.Errorf("%w: gc removed %v and kept %d", ErrFailed, gc.Removed, gc.Kept)
	}
	exists, err := b.Exists(ctx, stale)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s survived gc", ErrFailed, stale)
	}
	return nil
}

func stepCorruption(ctx context.Context, s *cas.Store) error {
	if _, err := s.Get(ctx, d11); err != nil {
		return fmt.Errorf("load before corruption: %w", err)
	}
	// Same length, different bytes: shared by three catalogs.
	if err := s.Backend().Write(ctx, d1234567890+".bin", []byte("0987654321")); err != nil {
		return err
	}
	if _, err := s.Get(ctx, d11); !errors.Is(err, cas.ErrChecksumMismatch) {
		return fmt.Errorf("%w: load of corrupted object returned %v", ErrFailed, err)
	}
	if _, err := s.Check(ctx); !errors.Is(err, cas.ErrChecksumMismatch) {
		return fmt.Errorf("%w: check of corrupted store returned %v", ErrFailed, err)
	}
	return nil
}

// cleanup removes every object, then tears down and closes b.
func cleanup(ctx context.Context, b backend.Backend) error {
	names, err := b.List(ctx)
	if err != nil {
		return errors.Join(fmt.Errorf("cleanup list: %w", err), b.Close())
	}
	var errs []error
	for _, name := range names {
		if err := b.Remove(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("cleanup remove %s: %w", name, err))
		}
	}
	if err := b.Teardown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("teardown: %w", err))
	}
	if err := b.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}
