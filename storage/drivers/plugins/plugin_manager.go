package plugins

import (
	"fmt"
	"strings"

	"github.com/jrife/confdb/storage/driver"
)

// PluginManager lets a consumer
// retrieve a storage plugin
// by name
type PluginManager struct {
	plugins []driver.Plugin
}

// NewPluginManager returns a PluginManager
// that is loaded with all supported plugins.
func NewPluginManager() *PluginManager {
	return &PluginManager{
		plugins: builtin(),
	}
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func (pluginManager *PluginManager) Plugin(name string) driver.Plugin {
	return find(pluginManager.plugins, name)
}

func (pluginManager *PluginManager) Plugins() []driver.Plugin {
	return pluginManager.plugins
}

// Open creates a driver with the named plugin after checking that
// every required setting is present
func (pluginManager *PluginManager) Open(name string, options driver.PluginOptions) (driver.Driver, error) {
	plugin := pluginManager.Plugin(name)

	if plugin == nil {
		names := []string{}

		for _, plugin := range pluginManager.plugins {
			names = append(names, plugin.Name())
		}

		return nil, fmt.Errorf("no backend named %q, expected one of %s", name, strings.Join(names, ", "))
	}

	for _, setting := range plugin.Settings() {
		if _, ok := options[setting.Name]; setting.Required && !ok {
			return nil, fmt.Errorf("backend %s requires setting %q: %s", name, setting.Name, setting.Description)
		}
	}

	return plugin.NewDriver(options)
}
