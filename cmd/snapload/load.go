package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simdata/snapload/fields"
	"github.com/simdata/snapload/load"
)

func loadCmd() *cobra.Command {
	var (
		prefix    string
		token     string
		groups    []string
		chunkRows uint64
		virtual   bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "load <path>",
		Short: "load a dataset and summarize the bound field containers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			l := load.New(args[0], cfg)
			defer l.Close()
			data, meta, err := l.Load(load.Options{
				FilePrefix:   prefix,
				Token:        token,
				GroupsLoad:   groups,
				Chunksize:    chunkRows,
				VirtualCache: virtual,
				Overwrite:    overwrite,
			})
			if err != nil {
				return err
			}

			col := fields.FromLoad(data, meta)
			fmt.Printf("%s (%s) -> %s\n", args[0], l.Kind(), l.Location())
			for _, g := range col.Groups() {
				c := col.Group(g)
				fmt.Printf("  %s:\n", g)
				for _, name := range c.Names() {
					a := c.Get(name)
					fmt.Printf("    %-12s %s  shape=%v blocks=%d\n",
						name, a.Name(), a.Shape(), a.NumBlocks())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "chunk file prefix filter")
	cmd.Flags().StringVar(&token, "token", "", "token mixed into derived array names")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "restrict binding to these path prefixes")
	cmd.Flags().Uint64Var(&chunkRows, "chunksize", 0, "rows per lazy block (0 = auto)")
	cmd.Flags().BoolVar(&virtual, "virtual", false, "virtual merge for chunked directories")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "re-merge even when cached")
	return cmd
}
