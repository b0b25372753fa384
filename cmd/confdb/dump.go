package main

import (
	"fmt"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/drivers/plugins"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/ohler55/ojg/jp"
	"github.com/spf13/cobra"
)

func newDumpCmd(pluginManager *plugins.PluginManager) *cobra.Command {
	var backend backendFlags
	var ownerString, jsonPath string
	var customs []string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the data of one owner as JSON",
		Long: `Print the data of one owner as a JSON object keyed by category.
--jsonpath selects parts of that object and prints the list of matches.`,
		Example: `  confdb dump --backend bbolt --opt path=./confdb.bolt --owner Economy/1234 --jsonpath '$.MEMBER.*.*.balance'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, ok := identifier.ParseOwner(ownerString)

			if !ok {
				return fmt.Errorf("invalid owner %q, expected NAME/ID", ownerString)
			}

			custom, err := parseCustoms(customs)

			if err != nil {
				return err
			}

			var expr jp.Expr

			if jsonPath != "" {
				if expr, err = jp.ParseString(jsonPath); err != nil {
					return fmt.Errorf("invalid jsonpath %q: %w", jsonPath, err)
				}
			}

			d, err := backend.open(pluginManager)

			if err != nil {
				return err
			}

			defer d.Close()

			data, err := d.Export(cmd.Context(), owner, custom[owner])

			if err != nil {
				return err
			}

			var doc interface{} = map[string]interface{}{}

			for _, category := range data {
				doc.(map[string]interface{})[category.Category] = category.Data
			}

			if expr != nil {
				doc = expr.Get(doc)
			}

			encoded, err := document.EncodeIndent(doc, 2)

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

			return nil
		},
	}

	backend.register(cmd, "", "backend to read")
	cmd.Flags().StringVar(&ownerString, "owner", "", "owner to dump as NAME/ID")
	cmd.Flags().StringVar(&jsonPath, "jsonpath", "", "JSONPath expression selecting what to print")
	cmd.Flags().StringArrayVar(&customs, "custom", nil, "custom category as NAME/ID:CATEGORY=ARITY, repeatable")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
