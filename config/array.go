package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/driver"
	"go.uber.org/zap"
)

// Array is a Value holding a list
type Array struct {
	node
}

// ListOption modifies Append, Extend and Insert
type ListOption func(options *driver.ListOptions)

// WithMaxLength bounds the length of the list after the operation.
// Extend drops items from the end opposite to where it adds them and
// Insert drops the last item. A bound of 0 empties the list.
func WithMaxLength(n int) ListOption {
	return func(options *driver.ListOptions) {
		options.MaxLength = &n
	}
}

// AtFront makes Append and Extend add items at the start of the list
func AtFront() ListOption {
	return func(options *driver.ListOptions) {
		options.Prepend = true
	}
}

// def returns the registered default list or an empty list
func (array *Array) def() []interface{} {
	if def, ok := array.Default(); ok {
		if list, ok := def.([]interface{}); ok {
			return list
		}
	}

	return []interface{}{}
}

func (array *Array) listOptions(opts []ListOption) driver.ListOptions {
	options := driver.ListOptions{Default: array.def()}

	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// Get returns the stored list or its default
func (array *Array) Get(ctx context.Context) ([]interface{}, error) {
	value, err := array.node.Get(ctx)

	if err != nil {
		return nil, err
	}

	if value == nil {
		return nil, nil
	}

	list, ok := value.([]interface{})

	if !ok {
		return nil, fmt.Errorf("%w: %s holds a %s, not a list", ErrTypeMismatch, array.id, document.TypeName(value))
	}

	return list, nil
}

// Set replaces the stored list. v must be a slice.
func (array *Array) Set(ctx context.Context, v interface{}) error {
	normalized, err := document.Normalize(v)

	if err != nil {
		return err
	}

	if _, ok := normalized.([]interface{}); !ok {
		return fmt.Errorf("%w: an array can only be set to a list, got a %s", ErrTypeMismatch, document.TypeName(normalized))
	}

	return array.node.Set(ctx, normalized)
}

// Append adds item to the list and returns the new list
func (array *Array) Append(ctx context.Context, item interface{}, opts ...ListOption) ([]interface{}, error) {
	return array.Extend(ctx, []interface{}{item}, opts...)
}

// Extend adds items to the list and returns the new list
func (array *Array) Extend(ctx context.Context, items []interface{}, opts ...ListOption) ([]interface{}, error) {
	options := array.listOptions(opts)
	array.logger(ctx, "extend").Debug("start", zap.Int("items", len(items)), zap.Int("maxLength", options.Limit()))

	return array.config.driver().Extend(ctx, array.id, items, options, array.Lock())
}

// Insert inserts item before index and returns the new list. Negative
// indexes count from the end and out of range indexes are clamped.
func (array *Array) Insert(ctx context.Context, index int, item interface{}, opts ...ListOption) ([]interface{}, error) {
	return array.config.driver().Insert(ctx, array.id, index, item, array.listOptions(opts), array.Lock())
}

// Index returns the position of the first item equal to item
func (array *Array) Index(ctx context.Context, item interface{}) (int, error) {
	i, err := array.config.driver().Index(ctx, array.id, item)

	if errors.Is(err, driver.ErrNotFound) {
		return driver.IndexOf(array.def(), item)
	}

	return i, err
}

// At returns the item at index. Negative indexes count from the end.
func (array *Array) At(ctx context.Context, index int) (interface{}, error) {
	item, err := array.config.driver().At(ctx, array.id, index)

	if errors.Is(err, driver.ErrNotFound) {
		return driver.At(array.def(), index)
	}

	return item, err
}

// SetAt replaces the item at index
func (array *Array) SetAt(ctx context.Context, index int, item interface{}) error {
	return array.config.driver().SetAt(ctx, array.id, index, item, array.def(), array.Lock())
}

// Contains reports whether the list holds an item equal to item
func (array *Array) Contains(ctx context.Context, item interface{}) (bool, error) {
	ok, err := array.config.driver().Contains(ctx, array.id, item)

	if errors.Is(err, driver.ErrNotFound) {
		return driver.Contains(array.def(), item)
	}

	return ok, err
}

// MutateList is Mutate for lists. fn may replace the list through the
// pointer, for example to append to it.
func (array *Array) MutateList(ctx context.Context, fn func(list *[]interface{}) error, opts ...Option) error {
	read := func(ctx context.Context) (interface{}, error) {
		list, err := array.Get(ctx)

		if err != nil || list == nil {
			return nil, err
		}

		return list, nil
	}

	return array.mutate(ctx, read, array.Set, func(v *interface{}) error {
		list := (*v).([]interface{})
		defer func() {
			*v = list
		}()

		return fn(&list)
	}, newOptions(opts))
}
