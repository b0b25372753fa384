package main

import (
	"fmt"
	"os"

	"github.com/jrife/confdb/storage/drivers/plugins"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRootCmd builds the command tree. Commands are rebuilt for every
// invocation so flag state never leaks between runs.
func newRootCmd() *cobra.Command {
	var logLevel string
	var restoreLogger func()

	rootCmd := &cobra.Command{
		Use:           "confdb",
		Short:         "Inspect and migrate confdb storage backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zap.ParseAtomicLevel(logLevel)

			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}

			config := zap.NewProductionConfig()
			config.Level = level
			logger, err := config.Build()

			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}

			restoreLogger = zap.ReplaceGlobals(logger)

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if restoreLogger != nil {
				_ = zap.L().Sync()
				restoreLogger()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	pluginManager := plugins.NewPluginManager()
	rootCmd.AddCommand(
		newBackendsCmd(pluginManager),
		newOwnersCmd(pluginManager),
		newMigrateCmd(pluginManager),
		newDumpCmd(pluginManager),
		newDeleteAllCmd(pluginManager),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
