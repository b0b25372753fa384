package main

import (
	"fmt"

	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/drivers/plugins"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(pluginManager *plugins.PluginManager) *cobra.Command {
	var from, to backendFlags
	var customs []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every owner from one backend into another",
		Long: `Copy every owner from one backend into another. The source is not
modified. Custom categories are not discoverable from stored data and
must be declared with --custom for every owner that uses them.`,
		Example: `  confdb migrate --from json --from-opt dir=./data --to sqlite --to-opt path=./confdb.db \
    --custom Economy/1234:Bank=2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, err := parseCustoms(customs)

			if err != nil {
				return err
			}

			source, err := from.open(pluginManager)

			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}

			defer source.Close()

			destination, err := to.open(pluginManager)

			if err != nil {
				return fmt.Errorf("open destination: %w", err)
			}

			defer destination.Close()

			if err := driver.Migrate(cmd.Context(), source, destination, custom); err != nil {
				return err
			}

			owners, err := source.Owners(cmd.Context())

			if err != nil {
				return err
			}

			zap.L().Info("migration complete", zap.Int("owners", len(owners)))
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d owners from %s to %s\n", len(owners), source.Name(), destination.Name())

			return nil
		},
	}

	from.register(cmd, "from", "backend to copy from")
	to.register(cmd, "to", "backend to copy into")
	cmd.Flags().StringArrayVar(&customs, "custom", nil, "custom category as NAME/ID:CATEGORY=ARITY, repeatable")

	return cmd
}

func newDeleteAllCmd(pluginManager *plugins.PluginManager) *cobra.Command {
	var backend backendFlags
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete the data of every owner in a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete everything without --yes")
			}

			d, err := backend.open(pluginManager)

			if err != nil {
				return err
			}

			defer d.Close()

			return driver.DeleteAll(cmd.Context(), d)
		},
	}

	backend.register(cmd, "", "backend to clear")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")

	return cmd
}
