package main

import (
	"github.com/spf13/cobra"

	"github.com/gezibash/scs/internal/cas"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backend usage and object counts",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			stats, err := store.Backend().Stats(ctx)
			if err != nil {
				return err
			}
			objects, err := store.Objects(ctx)
			if err != nil {
				return err
			}

			counts := make(map[cas.Kind]int)
			for _, obj := range objects {
				counts[obj.Kind]++
			}

			return a.output(cmd.OutOrStdout()).KV("stats").
				Set("Backend", stats.BackendType).
				Set("Algorithm", store.Engine().Name()).
				Set("Block Size", store.BlockSize()).
				Set("Size Bytes", stats.SizeBytes).
				Set("Objects", len(objects)).
				Set("Blocks", counts[cas.KindBlock]).
				Set("Catalogs", counts[cas.KindCatalog]).
				Set("Temporary", counts[cas.KindTemporary]).
				Set("Unknown", counts[cas.KindUnknown]).
				Render()
		}),
	}
}
