package driver

import (
	"context"
	"fmt"
	"sort"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/log"
	"go.uber.org/zap"
)

// RowTxn is a transaction over a table of rows. Each row holds the
// encoded document of one scope instance and is keyed by owner,
// category and a complete primary key.
type RowTxn interface {
	// Row returns the row data or nil if the row does not exist
	Row(owner identifier.Owner, category string, pk []string) ([]byte, error)
	// Scan calls fn for every row of the category whose primary key
	// starts with prefix, in ascending key order
	Scan(owner identifier.Owner, category string, prefix []string, fn func(pk []string, data []byte) error) error
	// Put creates or replaces a row
	Put(owner identifier.Owner, category string, pk []string, data []byte) error
	// Delete deletes a row. It has no effect if the row does not exist
	Delete(owner identifier.Owner, category string, pk []string) error
	// DeletePrefix deletes every row of the category whose primary
	// key starts with prefix
	DeletePrefix(owner identifier.Owner, category string, prefix []string) error
	// DeleteOwner deletes every row of owner
	DeleteOwner(owner identifier.Owner) error
}

// RowBackend is a transactional row store. Update transactions must
// be serializable with respect to each other. If fn returns an error
// the transaction must be rolled back.
type RowBackend interface {
	View(ctx context.Context, fn func(txn RowTxn) error) error
	Update(ctx context.Context, fn func(txn RowTxn) error) error
	// Owners lists every owner with at least one row
	Owners(ctx context.Context) ([]identifier.Owner, error)
	Close() error
}

var _ Driver = (*RowDriver)(nil)

// RowDriver adapts a RowBackend into a Driver. Every derived
// operation runs inside a single update transaction, so it is atomic
// without the caller's lock.
type RowDriver struct {
	Base
	name    string
	backend RowBackend
	logger  *zap.Logger
}

// NewRowDriver returns a Driver named name that stores its data in
// backend
func NewRowDriver(name string, backend RowBackend, logger *zap.Logger) *RowDriver {
	driver := &RowDriver{name: name, backend: backend, logger: log.OrDefault(logger)}
	driver.Base = NewBase(driver, driver.logger)

	return driver
}

// Name implements Driver.Name
func (driver *RowDriver) Name() string {
	return driver.name
}

// Close implements Driver.Close
func (driver *RowDriver) Close() error {
	return driver.backend.Close()
}

// Owners implements Driver.Owners
func (driver *RowDriver) Owners(ctx context.Context) ([]identifier.Owner, error) {
	owners, err := driver.backend.Owners(ctx)

	if err != nil {
		return nil, wrapError("could not list owners", err)
	}

	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Name != owners[j].Name {
			return owners[i].Name < owners[j].Name
		}

		return owners[i].UniqueID < owners[j].UniqueID
	})

	return owners, nil
}

// Get implements Driver.Get
func (driver *RowDriver) Get(ctx context.Context, id identifier.Identifier) (interface{}, error) {
	var result interface{}

	err := driver.backend.View(ctx, func(txn RowTxn) error {
		var err error

		result, err = rowPrimitives{txn}.Get(ctx, id)

		return err
	})

	return result, wrapError("could not read row", err)
}

// Set implements Driver.Set
func (driver *RowDriver) Set(ctx context.Context, id identifier.Identifier, value interface{}) error {
	log.Operation(ctx, driver.logger, "set", zap.Stringer("id", id)).Debug("start")

	return wrapError("could not write row", driver.backend.Update(ctx, func(txn RowTxn) error {
		return rowPrimitives{txn}.Set(ctx, id, value)
	}))
}

// Clear implements Driver.Clear
func (driver *RowDriver) Clear(ctx context.Context, id identifier.Identifier) error {
	log.Operation(ctx, driver.logger, "clear", zap.Stringer("id", id)).Debug("start")

	return wrapError("could not clear rows", driver.backend.Update(ctx, func(txn RowTxn) error {
		return rowPrimitives{txn}.Clear(ctx, id)
	}))
}

func (driver *RowDriver) update(ctx context.Context, fn func(base Base) error) error {
	return driver.backend.Update(ctx, func(txn RowTxn) error {
		return fn(NewBase(rowPrimitives{txn}, driver.logger))
	})
}

func (driver *RowDriver) view(ctx context.Context, fn func(base Base) error) error {
	return driver.backend.View(ctx, func(txn RowTxn) error {
		return fn(NewBase(rowPrimitives{txn}, driver.logger))
	})
}

// Increment implements Driver.Increment
func (driver *RowDriver) Increment(ctx context.Context, id identifier.Identifier, delta interface{}, def interface{}, lock Locker) (interface{}, error) {
	var result interface{}

	err := driver.update(ctx, func(base Base) error {
		var err error

		result, err = base.Increment(ctx, id, delta, def, nil)

		return err
	})

	return result, err
}

// Toggle implements Driver.Toggle
func (driver *RowDriver) Toggle(ctx context.Context, id identifier.Identifier, def bool, lock Locker) (bool, error) {
	var result bool

	err := driver.update(ctx, func(base Base) error {
		var err error

		result, err = base.Toggle(ctx, id, def, nil)

		return err
	})

	return result, err
}

// Extend implements Driver.Extend
func (driver *RowDriver) Extend(ctx context.Context, id identifier.Identifier, items []interface{}, opts ListOptions, lock Locker) ([]interface{}, error) {
	var result []interface{}

	err := driver.update(ctx, func(base Base) error {
		var err error

		result, err = base.Extend(ctx, id, items, opts, nil)

		return err
	})

	return result, err
}

// Insert implements Driver.Insert
func (driver *RowDriver) Insert(ctx context.Context, id identifier.Identifier, index int, item interface{}, opts ListOptions, lock Locker) ([]interface{}, error) {
	var result []interface{}

	err := driver.update(ctx, func(base Base) error {
		var err error

		result, err = base.Insert(ctx, id, index, item, opts, nil)

		return err
	})

	return result, err
}

// SetAt implements Driver.SetAt
func (driver *RowDriver) SetAt(ctx context.Context, id identifier.Identifier, index int, value interface{}, def []interface{}, lock Locker) error {
	return driver.update(ctx, func(base Base) error {
		return base.SetAt(ctx, id, index, value, def, nil)
	})
}

// Index implements Driver.Index
func (driver *RowDriver) Index(ctx context.Context, id identifier.Identifier, item interface{}) (int, error) {
	result := -1

	err := driver.view(ctx, func(base Base) error {
		var err error

		result, err = base.Index(ctx, id, item)

		return err
	})

	return result, err
}

// Import implements Driver.Import in a single transaction
func (driver *RowDriver) Import(ctx context.Context, owner identifier.Owner, data []CategoryData, custom map[string]int) error {
	log.Operation(ctx, driver.logger, "import", zap.Stringer("owner", owner), zap.Int("categories", len(data))).Debug("start")

	return driver.update(ctx, func(base Base) error {
		return base.Import(ctx, owner, data, custom)
	})
}

// rowPrimitives implements Primitives inside one transaction
type rowPrimitives struct {
	txn RowTxn
}

// locate splits the path of id into the primary key of a row and the
// field path inside that row's document. complete is false if the
// path does not reach a row yet.
func locate(id identifier.Identifier) (pk []string, field []string, complete bool) {
	path := id.Path()

	if len(path) < id.Arity {
		return path, nil, false
	}

	return path[:id.Arity], path[id.Arity:], true
}

func (p rowPrimitives) row(id identifier.Identifier, pk []string) (interface{}, bool, error) {
	data, err := p.txn.Row(id.Owner, id.Category, pk)

	if err != nil {
		return nil, false, err
	}

	if data == nil {
		return nil, false, nil
	}

	doc, err := document.Decode(data)

	if err != nil {
		return nil, false, err
	}

	return doc, true, nil
}

func (p rowPrimitives) put(id identifier.Identifier, pk []string, doc interface{}) error {
	data, err := document.Encode(doc)

	if err != nil {
		return err
	}

	return p.txn.Put(id.Owner, id.Category, pk, data)
}

func (p rowPrimitives) Get(ctx context.Context, id identifier.Identifier) (interface{}, error) {
	if id.Category == "" {
		return nil, fmt.Errorf("%w: no category", ErrNotFound)
	}

	pk, field, complete := locate(id)

	if complete {
		doc, ok, err := p.row(id, pk)

		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		value, ok := document.Get(doc, field)

		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		return value, nil
	}

	rows := []document.Row{}

	err := p.txn.Scan(id.Owner, id.Category, pk, func(key []string, data []byte) error {
		doc, err := document.Decode(data)

		if err != nil {
			return err
		}

		rows = append(rows, document.Row{Key: key[len(pk):], Value: doc})

		return nil
	})

	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return document.Join(rows)
}

func (p rowPrimitives) Set(ctx context.Context, id identifier.Identifier, value interface{}) error {
	value, err := document.Normalize(value)

	if err != nil {
		return err
	}

	pk, field, complete := locate(id)

	if !complete {
		if err := CheckInstances(id, value); err != nil {
			return err
		}

		rows, err := document.Split(value, id.Arity-len(pk))

		if err != nil {
			return err
		}

		if err := p.txn.DeletePrefix(id.Owner, id.Category, pk); err != nil {
			return err
		}

		for _, row := range rows {
			key := append(append([]string{}, pk...), row.Key...)

			if err := p.put(id, key, row.Value); err != nil {
				return err
			}
		}

		return nil
	}

	if len(field) == 0 {
		return p.put(id, pk, value)
	}

	doc, _, err := p.row(id, pk)

	if err != nil {
		return err
	}

	if doc, err = document.Set(doc, field, value); err != nil {
		return err
	}

	return p.put(id, pk, doc)
}

func (p rowPrimitives) Clear(ctx context.Context, id identifier.Identifier) error {
	if id.Category == "" {
		return p.txn.DeleteOwner(id.Owner)
	}

	pk, field, complete := locate(id)

	if !complete {
		return p.txn.DeletePrefix(id.Owner, id.Category, pk)
	}

	if len(field) == 0 {
		return p.txn.Delete(id.Owner, id.Category, pk)
	}

	doc, ok, err := p.row(id, pk)

	if err != nil || !ok {
		return err
	}

	return p.put(id, pk, document.Delete(doc, field))
}
