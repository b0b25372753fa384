package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/utils/log"
	"go.uber.org/zap"
)

// Config is the configuration namespace of one owner
type Config struct {
	registry          *Registry
	owner             identifier.Owner
	forceRegistration bool
	mu                sync.RWMutex
	defaults          map[string]*defaultNode
	customs           map[string]int
	logger            *zap.Logger
}

// Owner returns the owner of the namespace
func (config *Config) Owner() identifier.Owner {
	return config.owner
}

// ForceRegistration reports whether unregistered fields are rejected
func (config *Config) ForceRegistration() bool {
	return config.forceRegistration
}

func (config *Config) driver() driver.Driver {
	return config.registry.driver
}

// Register adds defaults for a category. Keys of fields name the
// fields and may use "__" to address nested fields, so {"foo__bar": 1}
// and {"foo": {"bar": 1}} are equivalent. Only the keys of fields are
// checked against the field name rules: keys inside nested map
// literals are data, such as ids, and are taken as they are.
// Registering a field again replaces its default. Nothing is
// registered if any field fails.
func (config *Config) Register(category string, fields map[string]interface{}) error {
	if category == "" {
		return fmt.Errorf("%w: category must not be empty", ErrCustomCategory)
	}

	tree, err := parseFields(fields)

	if err != nil {
		return err
	}

	config.mu.Lock()
	defer config.mu.Unlock()

	current, ok := config.defaults[category]

	if !ok {
		current = newObject()
	}

	merged := current.clone()

	if err := merged.merge(tree, []string{category}); err != nil {
		return err
	}

	config.defaults[category] = merged
	config.logger.Debug("registered defaults", zap.String("category", category), zap.Int("fields", len(fields)))

	return nil
}

func (config *Config) RegisterGlobal(fields map[string]interface{}) error {
	return config.Register(identifier.Global, fields)
}

func (config *Config) RegisterGuild(fields map[string]interface{}) error {
	return config.Register(identifier.Guild, fields)
}

func (config *Config) RegisterChannel(fields map[string]interface{}) error {
	return config.Register(identifier.Channel, fields)
}

func (config *Config) RegisterRole(fields map[string]interface{}) error {
	return config.Register(identifier.Role, fields)
}

func (config *Config) RegisterUser(fields map[string]interface{}) error {
	return config.Register(identifier.User, fields)
}

func (config *Config) RegisterMember(fields map[string]interface{}) error {
	return config.Register(identifier.Member, fields)
}

// RegisterCustomCategory declares a custom category whose instances
// are selected by arity primary key parts. Registering the same
// category again with the same arity does nothing.
func (config *Config) RegisterCustomCategory(category string, arity int) error {
	if category == "" || identifier.IsBuiltin(category) {
		return fmt.Errorf("%w: %q is reserved", ErrCustomCategory, category)
	}

	if arity <= 0 {
		return fmt.Errorf("%w: %s needs a positive primary key arity, got %d", ErrCustomCategory, category, arity)
	}

	config.mu.Lock()
	defer config.mu.Unlock()

	if existing, ok := config.customs[category]; ok && existing != arity {
		return fmt.Errorf("%w: %s is already registered with arity %d", ErrCustomCategory, category, existing)
	}

	config.customs[category] = arity

	return nil
}

// Customs returns a copy of the registered custom categories
func (config *Config) Customs() map[string]int {
	config.mu.RLock()
	defer config.mu.RUnlock()

	customs := make(map[string]int, len(config.customs))

	for category, arity := range config.customs {
		customs[category] = arity
	}

	return customs
}

// Defaults returns a copy of the defaults registered for category
func (config *Config) Defaults(category string) map[string]interface{} {
	config.mu.RLock()
	defer config.mu.RUnlock()

	if root, ok := config.defaults[category]; ok {
		return root.materialize().(map[string]interface{})
	}

	return map[string]interface{}{}
}

// defaultAt returns the registered default node addressed by id or
// nil. Only identifiers with a complete primary key have defaults.
func (config *Config) defaultAt(id identifier.Identifier) *defaultNode {
	if !id.PrimaryKeyComplete() {
		return nil
	}

	config.mu.RLock()
	root := config.defaults[id.Category]
	config.mu.RUnlock()

	if root == nil {
		// Instances of a category without registrations are still
		// objects.
		root = newObject()
	}

	return root.lookup(id.FieldPath)
}

func (config *Config) arity(category string) (int, error) {
	if arity, ok := identifier.BuiltinArity(category); ok {
		return arity, nil
	}

	config.mu.RLock()
	defer config.mu.RUnlock()

	if arity, ok := config.customs[category]; ok {
		return arity, nil
	}

	return 0, fmt.Errorf("%w: %q is not registered", ErrCustomCategory, category)
}

func (config *Config) group(category string, arity int, primaryKey ...string) *Group {
	id := identifier.New(config.owner, category, arity).WithPrimaryKey(primaryKey...)

	return &Group{node{config: config, id: id}}
}

// Global returns the group of global data
func (config *Config) Global() *Group {
	return config.group(identifier.Global, 0)
}

// Guild returns the group of data of one guild
func (config *Config) Guild(guild string) *Group {
	return config.group(identifier.Guild, 1, guild)
}

// Channel returns the group of data of one channel
func (config *Config) Channel(channel string) *Group {
	return config.group(identifier.Channel, 1, channel)
}

// Role returns the group of data of one role
func (config *Config) Role(role string) *Group {
	return config.group(identifier.Role, 1, role)
}

// User returns the group of data of one user
func (config *Config) User(user string) *Group {
	return config.group(identifier.User, 1, user)
}

// Member returns the group of data of one user inside one guild
func (config *Config) Member(guild string, user string) *Group {
	return config.group(identifier.Member, 2, guild, user)
}

// Members returns the group of every member of a guild keyed by user
func (config *Config) Members(guild string) *Group {
	return config.group(identifier.Member, 2, guild)
}

// Category returns the group of every instance of a category. It can
// enumerate, clear or lock the whole category.
func (config *Config) Category(category string) (*Group, error) {
	arity, err := config.arity(category)

	if err != nil {
		return nil, err
	}

	return config.group(category, arity), nil
}

// Custom returns the group of one instance of a custom category, or
// of several instances if fewer primary key parts than its arity are
// given
func (config *Config) Custom(category string, primaryKey ...string) (*Group, error) {
	if identifier.IsBuiltin(category) {
		return nil, fmt.Errorf("%w: %s is not a custom category", ErrCustomCategory, category)
	}

	arity, err := config.arity(category)

	if err != nil {
		return nil, err
	}

	if len(primaryKey) > arity {
		return nil, fmt.Errorf("%w: %s takes %d primary key parts, got %d", ErrCustomCategory, category, arity, len(primaryKey))
	}

	return config.group(category, arity, primaryKey...), nil
}

// ClearAll deletes everything stored for the owner. Reads fall back
// to the registered defaults afterwards.
func (config *Config) ClearAll(ctx context.Context) error {
	log.Operation(ctx, config.logger, "clear-all").Debug("start")

	return config.driver().Clear(ctx, identifier.Identifier{Owner: config.owner})
}

// ClearAllCategory deletes every instance of a category
func (config *Config) ClearAllCategory(ctx context.Context, category string) error {
	group, err := config.Category(category)

	if err != nil {
		return err
	}

	log.Operation(ctx, config.logger, "clear-category", zap.String("category", category)).Debug("start")

	return group.Clear(ctx)
}
