package plugins

import (
	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/drivers/bbolt"
	"github.com/jrife/confdb/storage/drivers/json"
	"github.com/jrife/confdb/storage/drivers/memory"
	"github.com/jrife/confdb/storage/drivers/sqlite"
)

var plugins []driver.Plugin

func init() {
	plugins = builtin()
}

func builtin() []driver.Plugin {
	all := []driver.Plugin{}

	all = append(all, memory.Plugins()...)
	all = append(all, json.Plugins()...)
	all = append(all, bbolt.Plugins()...)
	all = append(all, sqlite.Plugins()...)

	return all
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func Plugin(name string) driver.Plugin {
	return find(plugins, name)
}

// Plugins lists all the plugins that are available
func Plugins() []driver.Plugin {
	return plugins
}

func find(plugins []driver.Plugin, name string) driver.Plugin {
	for _, plugin := range plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}
