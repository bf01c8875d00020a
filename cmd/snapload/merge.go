package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/simdata/snapload/load"
)

func mergeCmd() *cobra.Command {
	var (
		out       string
		prefix    string
		virtual   bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "merge <chunk-dir>",
		Short: "merge a directory of chunk files into one HDF5 file",
		Long: `Merge a directory of numbered chunk files into a single HDF5 file.
Without --out, the result is placed into the configured cache directory,
exactly where a later load would look for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := load.Options{
				FilePrefix:   prefix,
				VirtualCache: virtual,
				Overwrite:    overwrite,
			}

			if out != "" {
				if err := load.Merge(args[0], out, opts); err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, ok := cfg.CacheDir(); !ok {
				return errors.New("no cache directory configured; pass --out")
			}
			l := load.New(args[0], cfg)
			defer l.Close()
			if _, err := l.Inspect(opts); err != nil {
				return err
			}
			fmt.Println(l.Location())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination file (default: the cache)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "chunk file prefix filter")
	cmd.Flags().BoolVar(&virtual, "virtual", false, "write a stitch descriptor instead of copying data")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing merged file")
	return cmd
}
