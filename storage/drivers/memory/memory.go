// Package memory implements a driver that keeps everything in
// process memory. Derived operations are the generic ones from
// driver.Base and rely on the caller's lock.
package memory

import (
	"context"
	"sync"

	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/log"
	"go.uber.org/zap"
)

const (
	DriverName = "memory"
)

func Plugins() []driver.Plugin {
	return []driver.Plugin{
		&MemoryPlugin{},
	}
}

type MemoryPlugin struct {
}

func (plugin *MemoryPlugin) Name() string {
	return DriverName
}

func (plugin *MemoryPlugin) Settings() []driver.Setting {
	return []driver.Setting{}
}

func (plugin *MemoryPlugin) NewDriver(options driver.PluginOptions) (driver.Driver, error) {
	return New(Config{}), nil
}

func (plugin *MemoryPlugin) NewTempDriver() (driver.Driver, error) {
	return plugin.NewDriver(driver.PluginOptions{})
}

// Config configures a memory driver
type Config struct {
	Logger *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// Driver is an in-memory driver.Driver
type Driver struct {
	driver.Base
	mu     sync.RWMutex
	tree   *Tree
	closed bool
	logger *zap.Logger
}

// New returns an empty memory driver
func New(config Config) *Driver {
	d := &Driver{tree: NewTree(), logger: log.OrDefault(config.Logger)}
	d.Base = driver.NewBase(d, d.logger)

	return d
}

func (d *Driver) Name() string {
	return DriverName
}

func (d *Driver) Get(ctx context.Context, id identifier.Identifier) (interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, driver.ErrClosed
	}

	return d.tree.Get(id)
}

func (d *Driver) Set(ctx context.Context, id identifier.Identifier, value interface{}) error {
	log.Operation(ctx, d.logger, "set", zap.Stringer("id", id)).Debug("start")

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return driver.ErrClosed
	}

	return d.tree.Set(id, value)
}

func (d *Driver) Clear(ctx context.Context, id identifier.Identifier) error {
	log.Operation(ctx, d.logger, "clear", zap.Stringer("id", id)).Debug("start")

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return driver.ErrClosed
	}

	d.tree.Clear(id)

	return nil
}

func (d *Driver) Owners(ctx context.Context) ([]identifier.Owner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, driver.ErrClosed
	}

	return d.tree.Owners(), nil
}

// Close discards all data
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.tree = NewTree()

	return nil
}
