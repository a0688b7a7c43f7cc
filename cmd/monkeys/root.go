package main

import (
	"github.com/spf13/cobra"
)

// globalFlags are shared by every command.
type globalFlags struct {
	env        string
	configPath string
	logLevel   string
	corpusPath string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "monkeys",
		Short:         "Search a literary corpus with uniformly random strings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.env, "env", "", "environment config to load (default: $ENV or local)")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "explicit config file, overrides --env")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level")
	root.PersistentFlags().StringVar(&flags.corpusPath, "corpus", "", "read the corpus from a local file instead of the store")

	root.AddCommand(
		newRunCmd(flags),
		newStopCmd(flags),
		newSegmentCmd(flags),
		newFilterCmd(flags),
		newReportCmd(flags),
		newReplayCmd(flags),
		newVersionCmd(),
	)
	return root
}
