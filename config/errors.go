package config

import (
	"errors"

	"github.com/jrife/confdb/storage/driver"
)

var (
	// ErrInvalidField is returned by Register when a field name is not
	// an identifier
	ErrInvalidField = errors.New("invalid field name")
	// ErrSchemaConflict is returned by Register when a name would be
	// both a value and a group, and by accessors asked for the wrong
	// shape of a registered default
	ErrSchemaConflict = driver.ErrSchemaConflict
	// ErrTypeMismatch is returned when stored data or an argument does
	// not have the shape an operation requires
	ErrTypeMismatch = driver.ErrTypeMismatch
	// ErrNotFound is returned by raw reads when neither storage nor the
	// registered defaults have a value
	ErrNotFound = driver.ErrNotFound
	// ErrIndexOutOfRange is returned by positional array operations
	ErrIndexOutOfRange = driver.ErrIndexOutOfRange
	// ErrValueNotInList is returned by Array.Index
	ErrValueNotInList = driver.ErrValueNotInList
	// ErrCustomCategory is returned when a custom category is used
	// before it is registered, registered twice with different arities
	// or addressed with too many primary key parts
	ErrCustomCategory = errors.New("invalid custom category")
	// ErrUnregistered is returned when a Config with force registration
	// is asked for a field that has no registered default
	ErrUnregistered = errors.New("field is not registered")
	// ErrMissingDefault is returned by Increment and Toggle when no
	// default of the right type is registered
	ErrMissingDefault = errors.New("no usable default registered")
)
