package driver

import (
	"context"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/identifier"
)

// Plugin represents a storage backend plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// Settings describes the options NewDriver understands
	Settings() []Setting
	// NewDriver returns an instance of the plugin driver. It must
	// be safe to call NewDriver before any other operation and the
	// returned driver must release its resources on Close.
	NewDriver(options PluginOptions) (Driver, error)
	// NewTempDriver returns an instance of the plugin driver
	// initialized with some sane defaults. It is meant for
	// tests that need an initialized instance of the plugin's
	// driver without knowing how to initialize it
	NewTempDriver() (Driver, error)
}

// PluginOptions is a set of plugin specific settings
type PluginOptions map[string]interface{}

// Setting describes one plugin option
type Setting struct {
	Name        string
	Description string
	Required    bool
}

// Locker is the lock a caller passes to a mutating derived operation.
// The operation holds it for the duration of its read-modify-write.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock()
}

// ListOptions controls list mutations
type ListOptions struct {
	// Default is used when nothing is stored yet
	Default []interface{}
	// MaxLength bounds the length of the list after the mutation.
	// nil means unbounded and 0 empties the list.
	MaxLength *int
	// Prepend inserts at the front instead of the back
	Prepend bool
}

// Limit returns the bound on the list length, document.Unbounded if
// there is none
func (opts ListOptions) Limit() int {
	if opts.MaxLength == nil || *opts.MaxLength < 0 {
		return document.Unbounded
	}

	return *opts.MaxLength
}

// CategoryData is one exported category document: every scope
// instance of the category keyed by its primary key parts
type CategoryData struct {
	Category string
	Data     interface{}
}

// Primitives is the minimal set of operations a backend must provide.
//
// Get returns a copy of the value at id that the caller may modify.
// It must return ErrNotFound if nothing is stored there. If the
// primary key of id is incomplete Get returns the nested document of
// every scope instance under it.
//
// Set stores a copy of value at id, creating intermediate objects.
// It must return ErrSchemaConflict if an intermediate node is not an
// object.
//
// Clear deletes the value at id. Clearing something that does not
// exist succeeds. If the primary key of id is incomplete every scope
// instance under it is deleted and if the category is empty every
// category of the owner is deleted.
type Primitives interface {
	Get(ctx context.Context, id identifier.Identifier) (interface{}, error)
	Set(ctx context.Context, id identifier.Identifier, value interface{}) error
	Clear(ctx context.Context, id identifier.Identifier) error
}

// Driver is a complete storage backend. Derived operations that
// mutate take the lock of id and hold it around their read and
// write. A nil lock means the caller already serializes access.
type Driver interface {
	Primitives
	// Increment adds delta to the number at id, starting from def if
	// nothing is stored, and returns the result. It returns
	// ErrTypeMismatch if the stored value is not a number.
	Increment(ctx context.Context, id identifier.Identifier, delta interface{}, def interface{}, lock Locker) (interface{}, error)
	// Toggle negates the boolean at id, starting from def if nothing
	// is stored, and returns the result. It returns ErrTypeMismatch
	// if the stored value is not a boolean.
	Toggle(ctx context.Context, id identifier.Identifier, def bool, lock Locker) (bool, error)
	// Extend adds items to one end of the list at id and returns
	// the new list. If the result is longer than opts.MaxLength it
	// is truncated from the other end.
	Extend(ctx context.Context, id identifier.Identifier, items []interface{}, opts ListOptions, lock Locker) ([]interface{}, error)
	// Insert inserts item before index in the list at id and returns
	// the new list. If the result is longer than opts.MaxLength its
	// last element is dropped.
	Insert(ctx context.Context, id identifier.Identifier, index int, item interface{}, opts ListOptions, lock Locker) ([]interface{}, error)
	// Index returns the position of item in the list at id. It
	// returns ErrNotFound if nothing is stored and ErrValueNotInList
	// if item is not in the list.
	Index(ctx context.Context, id identifier.Identifier, item interface{}) (int, error)
	// At returns the element at index of the list at id. Negative
	// indexes count from the end.
	At(ctx context.Context, id identifier.Identifier, index int) (interface{}, error)
	// SetAt replaces the element at index of the list at id
	SetAt(ctx context.Context, id identifier.Identifier, index int, value interface{}, def []interface{}, lock Locker) error
	// Contains reports whether the object at id has the key item or
	// the list at id contains item
	Contains(ctx context.Context, id identifier.Identifier, item interface{}) (bool, error)
	// Export returns the document of every built-in category and
	// every category named in custom that has data for owner
	Export(ctx context.Context, owner identifier.Owner, custom map[string]int) ([]CategoryData, error)
	// Import stores the output of Export. Each category document is
	// split into one write per scope instance according to the
	// category arity.
	Import(ctx context.Context, owner identifier.Owner, data []CategoryData, custom map[string]int) error
	// Owners lists every owner that has data stored in this driver
	Owners(ctx context.Context) ([]identifier.Owner, error)
	// Name returns the name of the plugin that created this driver
	Name() string
	// Close releases the resources held by the driver. Calls made
	// after Close returns must return ErrClosed.
	Close() error
}
