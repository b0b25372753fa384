package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
)

// Group is a Value holding an object. While the primary key of its
// category is incomplete a Group addresses several scope instances
// and its children are the next primary key parts.
type Group struct {
	node
}

// Child returns the accessor for name. If the primary key is
// incomplete name becomes its next part and the result is a *Group.
// Otherwise name is a field and the result is a *Group, *Array or
// *Value depending on the registered default.
func (group *Group) Child(name string) (Accessor, error) {
	if !group.id.PrimaryKeyComplete() {
		return &Group{node{config: group.config, id: group.id.WithPrimaryKey(name)}}, nil
	}

	id := group.id.WithField(name)
	child := node{config: group.config, id: id}
	def := group.config.defaultAt(id)

	if def == nil {
		if group.config.forceRegistration {
			return nil, fmt.Errorf("%w: %s", ErrUnregistered, id)
		}

		return &Value{child}, nil
	}

	switch def.kind {
	case kindObject:
		return &Group{child}, nil
	case kindList:
		return &Array{child}, nil
	}

	return &Value{child}, nil
}

// Value returns name as a *Value whatever its registered default
func (group *Group) Value(name string) (*Value, error) {
	child, err := group.Child(name)

	if err != nil {
		return nil, err
	}

	switch child := child.(type) {
	case *Group:
		return &Value{child.node}, nil
	case *Array:
		return &Value{child.node}, nil
	}

	return child.(*Value), nil
}

// Group returns name as a *Group. Unregistered fields are allowed
// unless registration is forced.
func (group *Group) Group(name string) (*Group, error) {
	child, err := group.Child(name)

	if err != nil {
		return nil, err
	}

	switch child := child.(type) {
	case *Group:
		return child, nil
	case *Value:
		if _, ok := child.Default(); !ok {
			return &Group{child.node}, nil
		}
	}

	return nil, group.shapeConflict(name, "group")
}

// Array returns name as an *Array. Unregistered fields are allowed
// unless registration is forced.
func (group *Group) Array(name string) (*Array, error) {
	child, err := group.Child(name)

	if err != nil {
		return nil, err
	}

	switch child := child.(type) {
	case *Array:
		return child, nil
	case *Value:
		if _, ok := child.Default(); !ok {
			return &Array{child.node}, nil
		}
	}

	return nil, group.shapeConflict(name, "list")
}

func (group *Group) shapeConflict(name string, want string) error {
	if !group.id.PrimaryKeyComplete() {
		return fmt.Errorf("%w: %s selects scope instances, not a %s", ErrSchemaConflict, group.id.WithPrimaryKey(name), want)
	}

	id := group.id.WithField(name)

	return fmt.Errorf("%w: %s is registered as a %s, not a %s", ErrSchemaConflict, id, group.config.defaultAt(id).kind, want)
}

// Defaults returns a copy of the registered defaults of the group.
// Groups addressing several instances have no defaults of their own.
func (group *Group) Defaults() map[string]interface{} {
	if def, ok := group.Default(); ok {
		if m, ok := def.(map[string]interface{}); ok {
			return m
		}
	}

	return map[string]interface{}{}
}

// instanceDefaults returns the defaults of one instance of the
// group's category
func (group *Group) instanceDefaults() map[string]interface{} {
	return group.config.Defaults(group.id.Category)
}

// Get returns the stored object overlaid on the registered defaults
func (group *Group) Get(ctx context.Context) (map[string]interface{}, error) {
	return group.All(ctx)
}

// All returns the stored object of the group. Registered defaults
// fill in whatever is not stored unless WithoutDefaults is given.
// Stored fields that have no default are returned as they are.
//
// For a group addressing several instances the result is keyed by
// the missing primary key parts and every instance is overlaid on the
// defaults of its category.
func (group *Group) All(ctx context.Context, opts ...Option) (map[string]interface{}, error) {
	options := newOptions(opts)
	stored, err := group.config.driver().Get(ctx, group.id)

	if errors.Is(err, driver.ErrNotFound) {
		stored = nil
	} else if err != nil {
		return nil, err
	}

	var defaults interface{} = group.Defaults()

	if options.withoutDefaults {
		defaults = map[string]interface{}{}
	}

	if stored == nil {
		if !group.id.PrimaryKeyComplete() {
			return map[string]interface{}{}, nil
		}

		return defaults.(map[string]interface{}), nil
	}

	var result interface{}

	switch {
	case options.withoutDefaults:
		result, err = overlayInstances(stored, group.id.MissingKeys(), defaults)
	case group.id.PrimaryKeyComplete():
		result, err = document.Overlay(defaults, stored)
	default:
		result, err = overlayInstances(stored, group.id.MissingKeys(), group.instanceDefaults())
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", group.id, err)
	}

	return result.(map[string]interface{}), nil
}

// overlayInstances overlays defaults on every node depth levels below
// doc
func overlayInstances(doc interface{}, depth int, defaults interface{}) (interface{}, error) {
	if depth == 0 {
		return document.Overlay(defaults, doc)
	}

	m, ok := doc.(map[string]interface{})

	if !ok {
		return nil, fmt.Errorf("%w: expected an object of instances, found a %s", ErrTypeMismatch, document.TypeName(doc))
	}

	result := make(map[string]interface{}, len(m))

	for key, child := range m {
		overlaid, err := overlayInstances(child, depth-1, defaults)

		if err != nil {
			return nil, err
		}

		result[key] = overlaid
	}

	return result, nil
}

// AllIntKeys is All with the first level of keys parsed as integers.
// It suits groups keyed by scope instance ids.
func (group *Group) AllIntKeys(ctx context.Context, opts ...Option) (map[int64]interface{}, error) {
	all, err := group.All(ctx, opts...)

	if err != nil {
		return nil, err
	}

	result := make(map[int64]interface{}, len(all))

	for key, value := range all {
		i, err := strconv.ParseInt(key, 10, 64)

		if err != nil {
			return nil, fmt.Errorf("%w: key %q of %s is not an integer", ErrTypeMismatch, key, group.id)
		}

		result[i] = value
	}

	return result, nil
}

// Set replaces the stored object. v must be a map.
func (group *Group) Set(ctx context.Context, v interface{}) error {
	normalized, err := document.Normalize(v)

	if err != nil {
		return err
	}

	if _, ok := normalized.(map[string]interface{}); !ok {
		return fmt.Errorf("%w: a group can only be set to an object, got a %s", ErrTypeMismatch, document.TypeName(normalized))
	}

	return group.node.Set(ctx, normalized)
}

// descend follows path from the group. Parts complete the primary key
// first and then address fields. def is the registered default at
// the end of path if there is one.
func (group *Group) descend(path []string) (id identifier.Identifier, def *defaultNode) {
	id = group.id

	for _, part := range path {
		if id.PrimaryKeyComplete() {
			id = id.WithField(part)
		} else {
			id = id.WithPrimaryKey(part)
		}
	}

	return id, group.config.defaultAt(id)
}

// GetRaw reads the data at path below the group like nested map
// access. Missing data falls back to the registered default at path,
// and ErrNotFound is returned if there is none. Objects are overlaid on
// their defaults.
func (group *Group) GetRaw(ctx context.Context, path ...string) (interface{}, error) {
	id, def := group.descend(path)

	if def == nil {
		return group.getRaw(ctx, id, nil, false)
	}

	return group.getRaw(ctx, id, def.materialize(), true)
}

// GetRawOr is GetRaw with an explicit default
func (group *Group) GetRawOr(ctx context.Context, def interface{}, path ...string) (interface{}, error) {
	id, _ := group.descend(path)
	normalized, err := document.Normalize(def)

	if err != nil {
		return nil, err
	}

	return group.getRaw(ctx, id, normalized, true)
}

func (group *Group) getRaw(ctx context.Context, id identifier.Identifier, def interface{}, hasDefault bool) (interface{}, error) {
	stored, err := group.config.driver().Get(ctx, id)

	if errors.Is(err, driver.ErrNotFound) {
		if hasDefault {
			return def, nil
		}

		return nil, err
	} else if err != nil {
		return nil, err
	}

	if _, ok := def.(map[string]interface{}); ok {
		return document.Overlay(def, stored)
	}

	return stored, nil
}

// SetRaw stores v at path below the group
func (group *Group) SetRaw(ctx context.Context, v interface{}, path ...string) error {
	id, _ := group.descend(path)

	return group.config.driver().Set(ctx, id, v)
}

// ClearRaw deletes the data at path below the group
func (group *Group) ClearRaw(ctx context.Context, path ...string) error {
	id, _ := group.descend(path)

	return group.config.driver().Clear(ctx, id)
}

// Contains reports whether key is a key of the object. Registered
// defaults are consulted when nothing is stored.
func (group *Group) Contains(ctx context.Context, key interface{}) (bool, error) {
	ok, err := group.config.driver().Contains(ctx, group.id, key)

	if errors.Is(err, driver.ErrNotFound) {
		return driver.Contains(group.Defaults(), key)
	}

	return ok, err
}

// MutateMap is Mutate for objects. fn receives the object with its
// defaults filled in.
func (group *Group) MutateMap(ctx context.Context, fn func(m map[string]interface{}) error, opts ...Option) error {
	read := func(ctx context.Context) (interface{}, error) {
		return group.Get(ctx)
	}

	return group.mutate(ctx, read, group.Set, func(v *interface{}) error {
		return fn((*v).(map[string]interface{}))
	}, newOptions(opts))
}
