package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gezibash/scs/internal/cel"
)

func newObjectsCmd(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List stored objects with their classification",
		Long: `List every object name in the backend as block, catalog, temporary
or unknown, with its digest and size.

The --filter flag takes a CEL expression over name, kind, digest and size.`,
		Example: `  scs objects
  scs objects --filter 'kind == "catalog"'
  scs objects --filter 'kind == "block" && size < 100' -o json`,
		Args: cobra.NoArgs,
		RunE: a.withSetup(func(cmd *cobra.Command, _ []string) error {
			var f *cel.Filter
			if filter != "" {
				var err error
				if f, err = cel.Compile(filter); err != nil {
					return err
				}
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			objects, err := store.Objects(cmd.Context())
			if err != nil {
				return err
			}
			if f != nil {
				objects = f.Apply(objects)
			}

			tbl := a.output(cmd.OutOrStdout()).Table("objects", "Name", "Kind", "Digest", "Size").AlignRight("Size")
			for _, obj := range objects {
				tbl.AddRow(obj.Name, string(obj.Kind), obj.Digest, strconv.FormatInt(obj.Size, 10))
			}
			return tbl.Render()
		}),
	}

	cmd.Flags().StringVar(&filter, "filter", "", "CEL expression selecting objects")
	return cmd
}
