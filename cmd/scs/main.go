package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gezibash/scs/internal/cli"

	// Register storage backends.
	_ "github.com/gezibash/scs/internal/backend/all"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		_ = cli.NewOutput(cli.FormatText, os.Stderr).Error("scs", err).Render()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd := newRootCmd(newApp())
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	var m modes

	cmd := &cobra.Command{
		Use:   "scs",
		Short: "Simple content-addressed storage",
		Long: `scs - simple content-addressed storage.

Without a mode flag, scs reads stdin, stores it, and prints its digest.
Content is split into fixed-size blocks; objects of two or more blocks
get a catalog listing their block digests.

Modes (first match wins):
  scs -t             run the self-test against temporary backends
  scs -c             verify every block and catalog in the store
  scs -g             remove stale temporary objects
  scs -l DIGEST      write the content for DIGEST to stdout
  scs < file         store stdin and print its digest`,
		Example: `  echo -n 1234567890 | scs -b 10
  scs -l 01b307acba4f54f55aafc33bb06bbbf6ca803e9a > out
  scs --backend s3 --backend-opt bucket=my-bucket -c -o json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.withSetup(m.run(a)),
	}

	a.bindFlags(cmd)
	f := cmd.Flags()
	f.BoolVarP(&m.test, "test", "t", false, "run test suite and exit")
	f.BoolVarP(&m.check, "check", "c", false, "check whole storage and exit")
	f.BoolVarP(&m.gc, "gc", "g", false, "run garbage collector")
	f.StringVarP(&m.load, "load", "l", "", "load data instead of storing data")

	cmd.AddCommand(
		newObjectsCmd(a),
		newStatsCmd(a),
		newBackendsCmd(a),
		newVersionCmd(),
	)
	return cmd
}
