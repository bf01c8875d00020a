package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simdata/snapload/load"
)

func inspectCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "print the object tree and attributes of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			l := load.New(args[0], cfg)
			defer l.Close()
			tree, err := l.Inspect(load.Options{FilePrefix: prefix})
			if err != nil {
				return err
			}

			fmt.Printf("%s (%s)\n", args[0], l.Kind())
			printAttrs("", tree.Attrs[load.RootAttrKey])
			for _, g := range tree.Groups {
				fmt.Printf("%sGroup %s\n", indentFor(g), g)
				printAttrs(indentFor(g)+"  ", tree.Attrs[g])
			}
			for _, ds := range tree.Datasets {
				fmt.Printf("%sDataset %s  shape=%v dtype=%s\n",
					indentFor(ds.Path), ds.Path, ds.Shape, ds.Dtype)
				printAttrs(indentFor(ds.Path)+"  ", tree.Attrs[ds.Path])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "chunk file prefix filter")
	return cmd
}

func indentFor(path string) string {
	depth := strings.Count(strings.Trim(path, "/"), "/")
	return strings.Repeat("  ", depth)
}

func printAttrs(indent string, attrs map[string]interface{}) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s@%s = %v\n", indent, k, attrs[k])
	}
}
