package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/locks"
	"github.com/jrife/confdb/utils/log"
	"go.uber.org/zap"
)

// Accessor is implemented by *Value, *Group and *Array. Group.Child
// returns the one matching the registered default.
type Accessor interface {
	Identifier() identifier.Identifier
	Default() (interface{}, bool)
	Clear(ctx context.Context) error
	Lock() *locks.Lock
}

var (
	_ Accessor = (*Value)(nil)
	_ Accessor = (*Group)(nil)
	_ Accessor = (*Array)(nil)
)

// node holds what every accessor shares: the Config it belongs to
// and the identifier it addresses
type node struct {
	config *Config
	id     identifier.Identifier
}

// Value reads and writes the data at one identifier
type Value struct {
	node
}

// Identifier returns the address of the value
func (value *node) Identifier() identifier.Identifier {
	return value.id
}

// Default returns a copy of the registered default. ok is false if
// nothing is registered, which is different from a nil default.
func (value *node) Default() (interface{}, bool) {
	def := value.config.defaultAt(value.id)

	if def == nil {
		return nil, false
	}

	return def.materialize(), true
}

// Lock returns the lock of the identifier. Every accessor for the
// same identifier gets the same lock while anyone holds a reference
// to it.
func (value *node) Lock() *locks.Lock {
	return value.config.registry.locks.Get(value.id.Key())
}

func (value *node) logger(ctx context.Context, op string) *zap.Logger {
	return log.Operation(ctx, value.config.logger, op, zap.Stringer("id", value.id))
}

// Get returns the stored value, or the registered default if nothing
// is stored. Unregistered values read as nil unless the Config forces
// registration.
func (value *node) Get(ctx context.Context) (interface{}, error) {
	stored, err := value.config.driver().Get(ctx, value.id)

	if errors.Is(err, driver.ErrNotFound) {
		if def, ok := value.Default(); ok {
			return def, nil
		}

		if value.config.forceRegistration {
			return nil, fmt.Errorf("%w: %s", ErrUnregistered, value.id)
		}

		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return stored, nil
}

// GetOr returns the stored value or def if nothing is stored
func (value *node) GetOr(ctx context.Context, def interface{}) (interface{}, error) {
	stored, err := value.config.driver().Get(ctx, value.id)

	if errors.Is(err, driver.ErrNotFound) {
		return document.Normalize(def)
	} else if err != nil {
		return nil, err
	}

	return stored, nil
}

// Set stores v. Object keys are converted to strings, so {1: true}
// reads back as {"1": true}.
func (value *node) Set(ctx context.Context, v interface{}) error {
	value.logger(ctx, "set").Debug("start")

	return value.config.driver().Set(ctx, value.id, v)
}

// Clear deletes the stored value. Reads fall back to the default.
func (value *node) Clear(ctx context.Context) error {
	value.logger(ctx, "clear").Debug("start")

	return value.config.driver().Clear(ctx, value.id)
}

// Increment adds delta to the stored number, starting from the
// registered default, and returns the result
func (value *node) Increment(ctx context.Context, delta interface{}) (interface{}, error) {
	def, _ := value.Default()

	if !document.IsNumber(def) {
		return nil, fmt.Errorf("%w: %s needs a numeric default to be incremented", ErrMissingDefault, value.id)
	}

	return value.IncrementOr(ctx, delta, def)
}

// IncrementOr is Increment starting from def instead of the registered
// default
func (value *node) IncrementOr(ctx context.Context, delta interface{}, def interface{}) (interface{}, error) {
	normalized, err := document.Normalize(def)

	if err != nil {
		return nil, err
	}

	if !document.IsNumber(normalized) {
		return nil, fmt.Errorf("%w: %s needs a numeric default to be incremented", ErrMissingDefault, value.id)
	}

	return value.config.driver().Increment(ctx, value.id, delta, normalized, value.Lock())
}

// Toggle flips the stored boolean, starting from the registered
// default, and returns the result
func (value *node) Toggle(ctx context.Context) (bool, error) {
	def, _ := value.Default()
	b, ok := def.(bool)

	if !ok {
		return false, fmt.Errorf("%w: %s needs a boolean default to be toggled", ErrMissingDefault, value.id)
	}

	return value.ToggleOr(ctx, b)
}

// ToggleOr is Toggle starting from def instead of the registered
// default
func (value *node) ToggleOr(ctx context.Context, def bool) (bool, error) {
	return value.config.driver().Toggle(ctx, value.id, def, value.Lock())
}

// Option modifies reads and mutations
type Option func(options *options)

type options struct {
	withoutDefaults bool
	withoutLock     bool
}

func newOptions(opts []Option) options {
	var o options

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithoutDefaults makes Group.All return only stored data
func WithoutDefaults() Option {
	return func(options *options) {
		options.withoutDefaults = true
	}
}

// WithoutLock makes a mutation run without taking the identifier's
// lock. Use it when the caller already holds the lock.
func WithoutLock() Option {
	return func(options *options) {
		options.withoutLock = true
	}
}

// Mutate reads the current object or list, lets fn edit it in place
// through the pointer and writes it back if it changed. The lock is
// held for the whole call unless WithoutLock is given.
//
// The write back also happens when fn returns an error or panics, so
// edits made before the failure are kept. Reading a value that is
// neither an object nor a list fails with ErrTypeMismatch.
func (value *node) Mutate(ctx context.Context, fn func(v *interface{}) error, opts ...Option) error {
	return value.mutate(ctx, value.Get, value.Set, fn, newOptions(opts))
}

func (value *node) mutate(
	ctx context.Context,
	read func(ctx context.Context) (interface{}, error),
	write func(ctx context.Context, v interface{}) error,
	fn func(v *interface{}) error,
	options options,
) (err error) {
	logger := value.logger(ctx, "mutate")

	if !options.withoutLock {
		lock := value.Lock()

		if err := lock.Lock(ctx); err != nil {
			return err
		}

		defer lock.Unlock()
	}

	current, err := read(ctx)

	if err != nil {
		return err
	}

	switch current.(type) {
	case map[string]interface{}, []interface{}:
	default:
		return fmt.Errorf("%w: cannot mutate a %s in place", ErrTypeMismatch, document.TypeName(current))
	}

	snapshot := document.Clone(current)
	live := current

	defer func() {
		r := recover()

		if writeErr := writeBack(ctx, snapshot, live, write); writeErr != nil {
			logger.Warn("could not write back mutation", zap.Error(writeErr))
			err = errors.Join(err, writeErr)
		}

		if r != nil {
			panic(r)
		}
	}()

	return fn(&live)
}

func writeBack(ctx context.Context, snapshot interface{}, live interface{}, write func(ctx context.Context, v interface{}) error) error {
	normalized, err := document.Normalize(live)

	if err != nil {
		return err
	}

	if document.Equal(snapshot, normalized) {
		return nil
	}

	return write(ctx, normalized)
}
