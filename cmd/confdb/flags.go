package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/drivers/plugins"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/spf13/cobra"
)

// backendFlags selects and configures one backend
type backendFlags struct {
	name    string
	options []string
}

func (flags *backendFlags) register(cmd *cobra.Command, prefix string, usage string) {
	nameFlag, optFlag := "backend", "opt"

	if prefix != "" {
		nameFlag, optFlag = prefix, prefix+"-opt"
	}

	cmd.Flags().StringVar(&flags.name, nameFlag, "", usage)
	cmd.Flags().StringArrayVar(&flags.options, optFlag, nil, "backend setting as key=value, repeatable")
	_ = cmd.MarkFlagRequired(nameFlag)
}

func (flags *backendFlags) open(pluginManager *plugins.PluginManager) (driver.Driver, error) {
	options, err := parseOptions(flags.options)

	if err != nil {
		return nil, err
	}

	return pluginManager.Open(flags.name, options)
}

// parseOptions turns key=value pairs into plugin options
func parseOptions(pairs []string) (driver.PluginOptions, error) {
	options := driver.PluginOptions{}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")

		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", pair)
		}

		options[key] = value
	}

	return options, nil
}

// parseCustoms parses NAME/ID:CATEGORY=ARITY declarations of custom
// categories
func parseCustoms(declarations []string) (map[identifier.Owner]map[string]int, error) {
	customs := map[identifier.Owner]map[string]int{}

	for _, declaration := range declarations {
		rest, arityString, ok := cutLast(declaration, "=")

		if !ok {
			return nil, fmt.Errorf("invalid custom category %q, expected NAME/ID:CATEGORY=ARITY", declaration)
		}

		ownerString, category, ok := cutLast(rest, ":")

		if !ok || category == "" {
			return nil, fmt.Errorf("invalid custom category %q, expected NAME/ID:CATEGORY=ARITY", declaration)
		}

		owner, ok := identifier.ParseOwner(ownerString)

		if !ok {
			return nil, fmt.Errorf("invalid owner %q, expected NAME/ID", ownerString)
		}

		arity, err := strconv.Atoi(arityString)

		if err != nil || arity <= 0 {
			return nil, fmt.Errorf("invalid arity %q for %s", arityString, category)
		}

		if customs[owner] == nil {
			customs[owner] = map[string]int{}
		}

		customs[owner][category] = arity
	}

	return customs, nil
}

func cutLast(s string, sep string) (before string, after string, found bool) {
	i := strings.LastIndex(s, sep)

	if i < 0 {
		return s, "", false
	}

	return s[:i], s[i+len(sep):], true
}
