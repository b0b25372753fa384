package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/log"
	"go.uber.org/zap"
)

// Base implements every derived operation of Driver on top of
// Primitives. Backends embed it and override whatever they can do
// atomically on their own.
type Base struct {
	Primitives
	logger *zap.Logger
}

// NewBase returns a Base whose derived operations use primitives.
// A nil logger means zap.L().
func NewBase(primitives Primitives, logger *zap.Logger) Base {
	return Base{Primitives: primitives, logger: log.OrDefault(logger)}
}

func acquire(ctx context.Context, lock Locker) (func(), error) {
	if lock == nil {
		return func() {}, nil
	}

	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}

	return lock.Unlock, nil
}

// current returns the stored value at id or def if nothing is stored
func (base Base) current(ctx context.Context, id identifier.Identifier, def interface{}) (interface{}, error) {
	value, err := base.Get(ctx, id)

	if errors.Is(err, ErrNotFound) {
		return document.Normalize(def)
	} else if err != nil {
		return nil, wrapError("could not read current value", err)
	}

	return value, nil
}

func (base Base) currentList(ctx context.Context, id identifier.Identifier, def []interface{}, op string) ([]interface{}, error) {
	if def == nil {
		def = []interface{}{}
	}

	value, err := base.current(ctx, id, def)

	if err != nil {
		return nil, err
	}

	list, ok := value.([]interface{})

	if !ok {
		return nil, typeMismatch(op, value)
	}

	return list, nil
}

// Increment implements Driver.Increment
func (base Base) Increment(ctx context.Context, id identifier.Identifier, delta interface{}, def interface{}, lock Locker) (interface{}, error) {
	logger := log.Operation(ctx, base.logger, "increment", zap.Stringer("id", id))
	unlock, err := acquire(ctx, lock)

	if err != nil {
		return nil, err
	}

	defer unlock()

	value, err := base.current(ctx, id, def)

	if err != nil {
		return nil, err
	}

	if !document.IsNumber(value) {
		return nil, typeMismatch("increment", value)
	}

	if delta, err = document.Normalize(delta); err != nil {
		return nil, err
	}

	result, err := document.Add(value, delta)

	if err != nil {
		return nil, err
	}

	if err := base.Set(ctx, id, result); err != nil {
		return nil, wrapError("could not store incremented value", err)
	}

	logger.Debug("return", zap.Any("result", result))

	return result, nil
}

// Toggle implements Driver.Toggle
func (base Base) Toggle(ctx context.Context, id identifier.Identifier, def bool, lock Locker) (bool, error) {
	unlock, err := acquire(ctx, lock)

	if err != nil {
		return false, err
	}

	defer unlock()

	value, err := base.current(ctx, id, def)

	if err != nil {
		return false, err
	}

	b, ok := value.(bool)

	if !ok {
		return false, typeMismatch("toggle", value)
	}

	if err := base.Set(ctx, id, !b); err != nil {
		return false, wrapError("could not store toggled value", err)
	}

	return !b, nil
}

// Extend implements Driver.Extend
func (base Base) Extend(ctx context.Context, id identifier.Identifier, items []interface{}, opts ListOptions, lock Locker) ([]interface{}, error) {
	logger := log.Operation(ctx, base.logger, "extend", zap.Stringer("id", id), zap.Int("items", len(items)), zap.Int("maxLength", opts.Limit()), zap.Bool("prepend", opts.Prepend))
	unlock, err := acquire(ctx, lock)

	if err != nil {
		return nil, err
	}

	defer unlock()

	list, err := base.currentList(ctx, id, opts.Default, "extend")

	if err != nil {
		return nil, err
	}

	normalized, err := document.Normalize(items)

	if err != nil {
		return nil, err
	}

	result := document.Extend(list, normalized.([]interface{}), opts.Limit(), opts.Prepend)

	if err := base.Set(ctx, id, result); err != nil {
		return nil, wrapError("could not store extended list", err)
	}

	logger.Debug("return", zap.Int("length", len(result)))

	return result, nil
}

// Insert implements Driver.Insert
func (base Base) Insert(ctx context.Context, id identifier.Identifier, index int, item interface{}, opts ListOptions, lock Locker) ([]interface{}, error) {
	unlock, err := acquire(ctx, lock)

	if err != nil {
		return nil, err
	}

	defer unlock()

	list, err := base.currentList(ctx, id, opts.Default, "insert into")

	if err != nil {
		return nil, err
	}

	if item, err = document.Normalize(item); err != nil {
		return nil, err
	}

	result := document.Insert(list, index, item, opts.Limit())

	if err := base.Set(ctx, id, result); err != nil {
		return nil, wrapError("could not store list", err)
	}

	return result, nil
}

// Index implements Driver.Index
func (base Base) Index(ctx context.Context, id identifier.Identifier, item interface{}) (int, error) {
	value, err := base.Get(ctx, id)

	if err != nil {
		return -1, wrapError("could not read list", err)
	}

	return IndexOf(value, item)
}

// IndexOf applies the semantics of Driver.Index to a value that was
// already read
func IndexOf(value interface{}, item interface{}) (int, error) {
	list, ok := value.([]interface{})

	if !ok {
		return -1, typeMismatch("search", value)
	}

	normalized, err := document.Normalize(item)

	if err != nil {
		return -1, err
	}

	if i := document.IndexOf(list, normalized); i >= 0 {
		return i, nil
	}

	return -1, fmt.Errorf("%w: %v", ErrValueNotInList, item)
}

// At implements Driver.At
func (base Base) At(ctx context.Context, id identifier.Identifier, index int) (interface{}, error) {
	value, err := base.Get(ctx, id)

	if err != nil {
		return nil, wrapError("could not read list", err)
	}

	return At(value, index)
}

// At applies the semantics of Driver.At to a value that was already
// read
func At(value interface{}, index int) (interface{}, error) {
	list, ok := value.([]interface{})

	if !ok {
		return nil, typeMismatch("index", value)
	}

	i, ok := document.ResolveIndex(index, len(list))

	if !ok {
		return nil, fmt.Errorf("%w: %d not in a list of %d", ErrIndexOutOfRange, index, len(list))
	}

	return list[i], nil
}

// SetAt implements Driver.SetAt
func (base Base) SetAt(ctx context.Context, id identifier.Identifier, index int, value interface{}, def []interface{}, lock Locker) error {
	unlock, err := acquire(ctx, lock)

	if err != nil {
		return err
	}

	defer unlock()

	list, err := base.currentList(ctx, id, def, "assign into")

	if err != nil {
		return err
	}

	i, ok := document.ResolveIndex(index, len(list))

	if !ok {
		return fmt.Errorf("%w: %d not in a list of %d", ErrIndexOutOfRange, index, len(list))
	}

	if list[i], err = document.Normalize(value); err != nil {
		return err
	}

	return wrapError("could not store list", base.Set(ctx, id, list))
}

// Contains implements Driver.Contains
func (base Base) Contains(ctx context.Context, id identifier.Identifier, item interface{}) (bool, error) {
	value, err := base.Get(ctx, id)

	if err != nil {
		return false, wrapError("could not read container", err)
	}

	return Contains(value, item)
}

// Contains applies the semantics of Driver.Contains to a value that
// was already read. Object keys are matched against the string form
// of item.
func Contains(value interface{}, item interface{}) (bool, error) {
	switch container := value.(type) {
	case map[string]interface{}:
		_, ok := container[fmt.Sprint(item)]

		return ok, nil
	case []interface{}:
		normalized, err := document.Normalize(item)

		if err != nil {
			return false, err
		}

		return document.IndexOf(container, normalized) >= 0, nil
	}

	return false, typeMismatch("search", value)
}
