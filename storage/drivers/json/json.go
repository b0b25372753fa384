// Package json implements a flat-file driver. Each owner is stored as
// one JSON document at <dir>/<owner name>/<unique id>.json which is
// read on first use, kept in memory and rewritten atomically after
// every change.
package json

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/drivers/memory"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/log"
	"github.com/jrife/confdb/utils/uuid"
	"go.uber.org/zap"
)

const (
	DriverName = "json"
	extension  = ".json"
)

func Plugins() []driver.Plugin {
	return []driver.Plugin{
		&JSONPlugin{},
	}
}

type JSONPlugin struct {
}

func (plugin *JSONPlugin) Name() string {
	return DriverName
}

func (plugin *JSONPlugin) Settings() []driver.Setting {
	return []driver.Setting{
		{Name: "dir", Description: "directory holding one folder of JSON files per owner", Required: true},
	}
}

func (plugin *JSONPlugin) NewDriver(options driver.PluginOptions) (driver.Driver, error) {
	var config Config

	if dir, ok := options["dir"]; !ok {
		return nil, fmt.Errorf("\"dir\" is required")
	} else if dirString, ok := dir.(string); !ok {
		return nil, fmt.Errorf("\"dir\" must be a string")
	} else {
		config.Dir = dirString
	}

	return New(config)
}

func (plugin *JSONPlugin) NewTempDriver() (driver.Driver, error) {
	return plugin.NewDriver(driver.PluginOptions{
		"dir": uuid.TempPath("confdb-json"),
	})
}

// Config configures a JSON driver
type Config struct {
	Dir    string
	Logger *zap.Logger
}

var _ driver.Driver = (*Driver)(nil)

// Driver is a flat-file driver.Driver
type Driver struct {
	driver.Base
	mu     sync.RWMutex
	dir    string
	tree   *memory.Tree
	loaded map[identifier.Owner]bool
	closed bool
	logger *zap.Logger
}

// New opens the JSON store rooted at config.Dir, creating the
// directory if needed
func New(config Config) (*Driver, error) {
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create directory %s: %w", config.Dir, err)
	}

	d := &Driver{
		dir:    config.Dir,
		tree:   memory.NewTree(),
		loaded: map[identifier.Owner]bool{},
		logger: log.OrDefault(config.Logger).With(zap.String("dir", config.Dir)),
	}
	d.Base = driver.NewBase(d, d.logger)

	return d, nil
}

func (d *Driver) Name() string {
	return DriverName
}

func (d *Driver) file(owner identifier.Owner) string {
	return filepath.Join(d.dir, owner.Name, owner.UniqueID+extension)
}

// load reads the document of owner into the tree unless it is
// already there. d.mu must be held for writing.
func (d *Driver) load(owner identifier.Owner) error {
	if d.loaded[owner] {
		return nil
	}

	path := d.file(owner)
	data, err := os.ReadFile(path)

	if errors.Is(err, os.ErrNotExist) {
		d.loaded[owner] = true

		return nil
	} else if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}

	doc, err := document.Decode(data)

	if err != nil {
		return fmt.Errorf("could not parse %s: %w", path, err)
	}

	root, ok := doc.(map[string]interface{})

	if !ok && doc != nil {
		return fmt.Errorf("%s does not contain a JSON object", path)
	}

	if root != nil {
		d.tree.Load(owner, root)
	}

	d.loaded[owner] = true
	d.logger.Debug("loaded owner", zap.Stringer("owner", owner))

	return nil
}

// save writes the document of owner to a temporary file and renames
// it over the old one. d.mu must be held for writing.
func (d *Driver) save(owner identifier.Owner) error {
	path := d.file(owner)
	root, ok := d.tree.Document(owner)

	if !ok {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not remove %s: %w", path, err)
		}

		return nil
	}

	data, err := document.EncodeIndent(root, 2)

	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), owner.UniqueID+"-*.tmp")

	if err != nil {
		return fmt.Errorf("could not create temporary file for %s: %w", path, err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("could not write %s: %w", tmp.Name(), err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()

		return fmt.Errorf("could not sync %s: %w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not replace %s: %w", path, err)
	}

	return nil
}

// update loads the owner of id, applies fn to the tree and saves the
// owner if fn reports a change
func (d *Driver) update(owner identifier.Owner, fn func() (bool, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return driver.ErrClosed
	}

	if err := d.load(owner); err != nil {
		return err
	}

	changed, err := fn()

	if err != nil && changed {
		// Forget the partially applied change and reread the file
		// on next use.
		d.tree.Clear(identifier.Identifier{Owner: owner})
		delete(d.loaded, owner)
	}

	if err != nil || !changed {
		return err
	}

	return d.save(owner)
}

func (d *Driver) Get(ctx context.Context, id identifier.Identifier) (interface{}, error) {
	d.mu.RLock()

	if d.closed {
		d.mu.RUnlock()

		return nil, driver.ErrClosed
	}

	if d.loaded[id.Owner] {
		defer d.mu.RUnlock()

		return d.tree.Get(id)
	}

	d.mu.RUnlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, driver.ErrClosed
	}

	if err := d.load(id.Owner); err != nil {
		return nil, err
	}

	return d.tree.Get(id)
}

func (d *Driver) Set(ctx context.Context, id identifier.Identifier, value interface{}) error {
	log.Operation(ctx, d.logger, "set", zap.Stringer("id", id)).Debug("start")

	return d.update(id.Owner, func() (bool, error) {
		return true, d.tree.Set(id, value)
	})
}

func (d *Driver) Clear(ctx context.Context, id identifier.Identifier) error {
	log.Operation(ctx, d.logger, "clear", zap.Stringer("id", id)).Debug("start")

	return d.update(id.Owner, func() (bool, error) {
		return d.tree.Clear(id), nil
	})
}

// Import stores every scope instance and writes the file once
func (d *Driver) Import(ctx context.Context, owner identifier.Owner, data []driver.CategoryData, custom map[string]int) error {
	log.Operation(ctx, d.logger, "import", zap.Stringer("owner", owner), zap.Int("categories", len(data))).Debug("start")

	return d.update(owner, func() (bool, error) {
		err := driver.SplitCategories(owner, data, custom, func(id identifier.Identifier, value interface{}) error {
			return d.tree.Set(id, value)
		})

		return true, err
	})
}

// Owners lists every owner with a file in the directory or unsaved
// data in memory
func (d *Driver) Owners(ctx context.Context) ([]identifier.Owner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, driver.ErrClosed
	}

	names, err := os.ReadDir(d.dir)

	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", d.dir, err)
	}

	for _, name := range names {
		if !name.IsDir() {
			continue
		}

		files, err := os.ReadDir(filepath.Join(d.dir, name.Name()))

		if err != nil {
			return nil, fmt.Errorf("could not list %s: %w", name.Name(), err)
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), extension) {
				continue
			}

			owner := identifier.Owner{Name: name.Name(), UniqueID: strings.TrimSuffix(file.Name(), extension)}

			if err := d.load(owner); err != nil {
				d.logger.Warn("skipping unreadable owner file", zap.Stringer("owner", owner), zap.Error(err))
			}
		}
	}

	return d.tree.Owners(), nil
}

// Close drops the in-memory copy. Everything is already on disk.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.tree = memory.NewTree()
	d.loaded = map[identifier.Owner]bool{}

	return nil
}
