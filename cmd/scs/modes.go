package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/backend/fs"
	"github.com/gezibash/scs/internal/backend/memory"
	"github.com/gezibash/scs/internal/cas"
	"github.com/gezibash/scs/internal/cli"
	"github.com/gezibash/scs/internal/selftest"
	"github.com/gezibash/scs/internal/storage"
)

// modes holds the root command's mode flags.
type modes struct {
	test  bool
	check bool
	gc    bool
	load  string
}

// run dispatches in the order test, check, gc, load, store.
func (m *modes) run(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		switch {
		case m.test:
			return runSelftest(ctx, a, cmd.OutOrStdout())
		case m.check:
			return runCheck(ctx, a, cmd.OutOrStdout())
		case m.gc:
			return runGC(ctx, a, cmd.OutOrStdout())
		case cmd.Flags().Changed("load"):
			return runLoad(ctx, a, m.load, cmd.OutOrStdout())
		default:
			return runStore(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
		}
	}
}

func runStore(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if f, ok := in.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		a.obs.Logger.Info("reading content from the terminal, end with Ctrl-D")
	}
	d, err := store.Put(ctx, in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, d)
	return err
}

func runLoad(ctx context.Context, a *app, d string, out io.Writer) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	r, err := store.Load(ctx, d)
	if err != nil {
		return err
	}
	// Chunks are written as they are read; a checksum mismatch surfaces
	// only after all content has been emitted.
	_, err = r.WriteTo(out)
	return err
}

func runCheck(ctx context.Context, a *app, out io.Writer) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	report, err := store.Check(ctx)
	if err != nil {
		return err
	}

	r := a.output(out).Report("check", "store is consistent").
		With("blocks", report.Blocks).
		With("catalogs", report.Catalogs).
		With("bytes verified", report.Bytes)
	for _, name := range report.Temporary {
		r.Warn("stale temporary object %s (remove with scs -g)", name)
	}
	for _, name := range report.Unknown {
		r.Warn("unrecognized object %s", name)
	}
	return r.Render()
}

func runGC(ctx context.Context, a *app, out io.Writer) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	report, err := store.GC(ctx, cas.AllRoots())
	if err != nil {
		return err
	}

	r := a.output(out).Report("gc", "garbage collection finished").
		With("removed", len(report.Removed)).
		With("kept", report.Kept)
	for _, name := range report.Unknown {
		r.Warn("unrecognized object %s left in place", name)
	}
	return r.Render()
}

// selftestTargets returns the backends the self-test runs against: a fresh
// directory for fs and an in-memory badger instance.
func selftestTargets() []struct {
	name    string
	factory selftest.Factory
} {
	return []struct {
		name    string
		factory selftest.Factory
	}{
		{"fs", func(ctx context.Context) (backend.Backend, error) {
			dir, err := os.MkdirTemp("", "scs-test-")
			if err != nil {
				return nil, err
			}
			b, err := fs.NewFactory(ctx, storage.Config{"path": dir})
			if err != nil {
				_ = os.RemoveAll(dir)
			}
			return b, err
		}},
		{"memory", func(ctx context.Context) (backend.Backend, error) {
			return memory.NewFactory(ctx, nil)
		}},
	}
}

func runSelftest(ctx context.Context, a *app, out io.Writer) error {
	r := a.output(out).Report("selftest", "all tests passed")
	for _, target := range selftestTargets() {
		a.obs.Logger.Info("running self-test", "backend", target.name)
		if err := selftest.Run(ctx, a.obs.Logger.With("backend", target.name), target.factory); err != nil {
			return fmt.Errorf("self-test on %s: %w", target.name, err)
		}
		r.With(target.name, cli.StatusOK)
	}
	return r.Render()
}
