package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/cas"
	"github.com/gezibash/scs/internal/cli"
	"github.com/gezibash/scs/internal/config"
	"github.com/gezibash/scs/internal/digest"
	"github.com/gezibash/scs/internal/observability"
)

// app carries the state shared by the root command and its subcommands.
type app struct {
	v           *viper.Viper
	verbose     bool
	backendOpts []string

	cfg config.Config
	obs *observability.Observability
}

func newApp() *app {
	return &app{v: viper.New()}
}

// bindFlags registers the persistent flags shared by every command.
func (a *app) bindFlags(cmd *cobra.Command) {
	config.BindFlags(cmd, a.v)
	f := cmd.PersistentFlags()
	f.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	f.StringArrayVar(&a.backendOpts, "backend-opt", nil, "backend option as key=value (repeatable)")
}

// setup loads the configuration and starts logging, metrics and tracing.
// Logs go to stderr; stdout carries data only.
func (a *app) setup(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.verbose {
		cfg.Observability.LogLevel = "debug"
	}
	if len(a.backendOpts) > 0 {
		if cfg.Storage.Config == nil {
			cfg.Storage.Config = make(map[string]string)
		}
		for _, opt := range a.backendOpts {
			key, value, ok := strings.Cut(opt, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid --backend-opt %q, want key=value", opt)
			}
			cfg.Storage.Config[key] = value
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	obs, err := observability.New(cmd.Context(), cfg.ObservabilityOptions(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.obs = obs
	obs.Logger.Debug("config loaded",
		"backend", cfg.Storage.Backend,
		"algorithm", cfg.Algorithm,
		"block_size", cfg.BlockSize,
	)
	return nil
}

// openBackend creates the configured backend and schedules its Close.
func (a *app) openBackend(ctx context.Context) (backend.Backend, error) {
	b, err := backend.New(ctx, a.cfg.Storage.Backend, a.cfg.BackendConfig(), a.obs.Metrics)
	if err != nil {
		return nil, err
	}
	a.obs.Shutdown.Register("backend", func(context.Context) error {
		return b.Close()
	})
	return b, nil
}

// openStore opens the backend and wraps it in a store.
func (a *app) openStore(ctx context.Context) (*cas.Store, error) {
	engine, err := digest.New(a.cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	b, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	return cas.New(b, engine,
		cas.WithBlockSize(a.cfg.BlockSize),
		cas.WithLogger(a.obs.Logger),
		cas.WithMetrics(a.obs.Metrics),
	)
}

// output returns a renderer for command results on w.
func (a *app) output(w io.Writer) *cli.Output {
	return cli.NewOutput(cli.ParseFormat(a.cfg.Output), w).WithBackend(a.cfg.Storage.Backend)
}

// close runs the shutdown handlers: backend close, metrics file, tracer flush.
func (a *app) close(ctx context.Context) error {
	if a.obs == nil {
		return nil
	}
	return a.obs.Close(context.WithoutCancel(ctx))
}

// withSetup wraps a command body with setup and shutdown.
func (a *app) withSetup(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.setup(cmd); err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(cmd.Context()); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}
