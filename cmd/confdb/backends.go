package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jrife/confdb/storage/drivers/plugins"
	"github.com/spf13/cobra"
)

func newBackendsCmd(pluginManager *plugins.PluginManager) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the available backends and their settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			for _, plugin := range pluginManager.Plugins() {
				fmt.Fprintf(w, "%s\n", plugin.Name())

				for _, setting := range plugin.Settings() {
					required := "optional"

					if setting.Required {
						required = "required"
					}

					fmt.Fprintf(w, "  %s\t%s\t%s\n", setting.Name, required, setting.Description)
				}
			}

			return w.Flush()
		},
	}
}

func newOwnersCmd(pluginManager *plugins.PluginManager) *cobra.Command {
	var backend backendFlags

	cmd := &cobra.Command{
		Use:   "owners",
		Short: "List the owners that have data in a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := backend.open(pluginManager)

			if err != nil {
				return err
			}

			defer d.Close()

			owners, err := d.Owners(cmd.Context())

			if err != nil {
				return err
			}

			for _, owner := range owners {
				fmt.Fprintln(cmd.OutOrStdout(), owner)
			}

			return nil
		},
	}

	backend.register(cmd, "", "backend to read")

	return cmd
}
