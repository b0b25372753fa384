// Package config is the application facing side of the store. A
// Registry hands out one Config per owner. A Config holds the
// registered defaults and custom categories of its owner and is the
// entry point for scoped accessors: Value for single values, Group
// for objects and Array for lists.
//
//	registry := config.NewRegistry(config.RegistryConfig{Driver: d})
//	conf := registry.Config(identifier.Owner{Name: "Economy", UniqueID: "1"})
//	conf.RegisterMember(map[string]interface{}{"balance": 0})
//	balance, _ := conf.Member("100", "200").Value("balance")
//	balance.Increment(ctx, 10)
package config

import (
	"context"
	"sort"
	"sync"

	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/locks"
	"github.com/jrife/confdb/utils/log"
	"go.uber.org/zap"
)

// RegistryConfig configures a Registry
type RegistryConfig struct {
	Driver driver.Driver
	Logger *zap.Logger
}

// Registry owns a driver, the lock table shared by all accessors and
// one Config per owner.
type Registry struct {
	driver  driver.Driver
	logger  *zap.Logger
	locks   *locks.Table
	mu      sync.Mutex
	configs map[identifier.Owner]*Config
}

// NewRegistry creates a registry around config.Driver
func NewRegistry(config RegistryConfig) *Registry {
	return &Registry{
		driver:  config.Driver,
		logger:  log.OrDefault(config.Logger),
		locks:   locks.NewTable(),
		configs: map[identifier.Owner]*Config{},
	}
}

// ConfigOption customizes a Config when it is first created
type ConfigOption func(config *Config)

// WithForceRegistration makes access to unregistered fields an error
func WithForceRegistration() ConfigOption {
	return func(config *Config) {
		config.forceRegistration = true
	}
}

// Config returns the Config of owner. Every call with the same owner
// returns the same instance so that defaults and locks are shared.
// Options only take effect on the call that creates the instance.
func (registry *Registry) Config(owner identifier.Owner, opts ...ConfigOption) *Config {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if config, ok := registry.configs[owner]; ok {
		return config
	}

	config := &Config{
		registry: registry,
		owner:    owner,
		defaults: map[string]*defaultNode{},
		customs:  map[string]int{},
		logger:   registry.logger.With(zap.Stringer("owner", owner)),
	}

	for _, opt := range opts {
		opt(config)
	}

	registry.configs[owner] = config
	config.logger.Debug("created config", zap.Bool("forceRegistration", config.forceRegistration))

	return config
}

// Configs returns every Config created so far ordered by owner
func (registry *Registry) Configs() []*Config {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	configs := make([]*Config, 0, len(registry.configs))

	for _, config := range registry.configs {
		configs = append(configs, config)
	}

	sort.Slice(configs, func(i, j int) bool {
		a, b := configs[i].owner, configs[j].owner

		if a.Name != b.Name {
			return a.Name < b.Name
		}

		return a.UniqueID < b.UniqueID
	})

	return configs
}

// Customs returns the custom categories of every owner in the shape
// driver.Migrate expects
func (registry *Registry) Customs() map[identifier.Owner]map[string]int {
	customs := map[identifier.Owner]map[string]int{}

	for _, config := range registry.Configs() {
		if c := config.Customs(); len(c) > 0 {
			customs[config.owner] = c
		}
	}

	return customs
}

// Driver returns the driver shared by every Config of the registry
func (registry *Registry) Driver() driver.Driver {
	return registry.driver
}

// Migrate copies everything stored in the registry's driver into to
func (registry *Registry) Migrate(ctx context.Context, to driver.Driver) error {
	_, ctx = log.LoggerFromContext(ctx, registry.logger)

	return driver.Migrate(ctx, registry.driver, to, registry.Customs())
}

// Close closes the driver
func (registry *Registry) Close() error {
	return registry.driver.Close()
}
