// Command snapload inspects, merges and loads simulation datasets.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simdata/snapload/config"
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "snapload",
		Short:         "load simulation datasets stored as HDF5 files, chunked directories or zarr stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: the user config)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(inspectCmd(), mergeCmd(), loadCmd())

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (config.Config, error) {
	var opts []config.Option
	if flagConfig != "" {
		opts = append(opts, config.WithPath(flagConfig))
	}
	return config.Load(opts...)
}
