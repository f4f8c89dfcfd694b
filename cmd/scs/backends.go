package main

import (
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gezibash/scs/internal/backend"
)

func newBackendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered storage backends and their defaults",
		Args:  cobra.NoArgs,
		RunE: a.withSetup(func(cmd *cobra.Command, _ []string) error {
			tbl := a.output(cmd.OutOrStdout()).Table("backends", "Name", "Defaults")
			for _, name := range backend.ListBackends() {
				defaults := backend.GetDefaults(name)
				pairs := make([]string, 0, len(defaults))
				for _, k := range slices.Sorted(maps.Keys(defaults)) {
					pairs = append(pairs, k+"="+defaults[k])
				}
				tbl.AddRow(name, strings.Join(pairs, " "))
			}
			return tbl.Render()
		}),
	}
}
