package driver

import (
	"errors"
	"fmt"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/identifier"
)

var (
	// ErrNotFound is returned when nothing is stored at an identifier
	ErrNotFound = errors.New("no value stored")
	// ErrSchemaConflict is returned by Set when an intermediate node of
	// the target path exists but is not an object
	ErrSchemaConflict = document.ErrSchemaConflict
	// ErrTypeMismatch is returned when a derived operation finds a
	// value of the wrong JSON type at its target
	ErrTypeMismatch = document.ErrTypeMismatch
	// ErrIndexOutOfRange is returned by positional list operations
	// when the index does not address an element
	ErrIndexOutOfRange = errors.New("list index out of range")
	// ErrValueNotInList is returned by Index when the item is not in
	// the list
	ErrValueNotInList = errors.New("value not in list")
	// ErrClosed indicates that the driver was closed
	ErrClosed = errors.New("driver was closed")
)

var sentinels = []error{
	ErrNotFound,
	ErrSchemaConflict,
	ErrTypeMismatch,
	ErrIndexOutOfRange,
	ErrValueNotInList,
	ErrClosed,
}

// wrapError adds context to backend failures. Errors from this
// package are returned unchanged so callers can match them directly.
func wrapError(wrap string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	return fmt.Errorf("%s: %w", wrap, err)
}

func typeMismatch(op string, v interface{}) error {
	return fmt.Errorf("%w: cannot %s a %s", ErrTypeMismatch, op, document.TypeName(v))
}

// CheckInstances verifies that value can be stored at an identifier
// whose primary key is incomplete: every missing primary key part
// must be an object level of value.
func CheckInstances(id identifier.Identifier, value interface{}) error {
	if id.PrimaryKeyComplete() {
		return nil
	}

	if _, err := document.Split(value, id.MissingKeys()); err != nil {
		return fmt.Errorf("%w: %s expects one object level per missing primary key part", ErrSchemaConflict, id)
	}

	return nil
}
