package document

import (
	"fmt"
	"strings"
)

// Get returns the node at path. ok is false if some segment of the
// path does not exist or passes through something other than an
// object.
func Get(doc interface{}, path []string) (interface{}, bool) {
	current := doc

	for _, segment := range path {
		m, ok := current.(map[string]interface{})

		if !ok {
			return nil, false
		}

		if current, ok = m[segment]; !ok {
			return nil, false
		}
	}

	return current, true
}

// Set stores value at path and returns the new root. doc is modified
// in place where possible. Missing intermediate objects are created.
// If an intermediate node exists but is not an object Set fails with
// ErrSchemaConflict and leaves doc untouched.
func Set(doc interface{}, path []string, value interface{}) (interface{}, error) {
	if len(path) == 0 {
		return value, nil
	}

	if doc == nil {
		doc = map[string]interface{}{}
	}

	m, ok := doc.(map[string]interface{})

	if !ok {
		return nil, fmt.Errorf("%w: cannot set %s inside a %s", ErrSchemaConflict, strings.Join(path, "."), TypeName(doc))
	}

	child, err := Set(m[path[0]], path[1:], value)

	if err != nil {
		return nil, err
	}

	m[path[0]] = child

	return m, nil
}

// Delete removes the node at path and returns the new root. Deleting
// the root returns nil. Deleting something that does not exist is a
// no-op.
func Delete(doc interface{}, path []string) interface{} {
	if len(path) == 0 {
		return nil
	}

	parent, ok := Get(doc, path[:len(path)-1])

	if !ok {
		return doc
	}

	if m, ok := parent.(map[string]interface{}); ok {
		delete(m, path[len(path)-1])
	}

	return doc
}

// Overlay merges stored onto a deep copy of defaults. Keys missing
// from stored keep their default values and keys missing from
// defaults are kept verbatim. Objects are merged recursively.
//
// Where a default is an object the stored value must be an object as
// well, otherwise Overlay fails with ErrTypeMismatch. Where a default
// is a scalar or a list the stored value replaces it whatever its
// shape.
func Overlay(defaults, stored interface{}) (interface{}, error) {
	return overlay(defaults, stored, nil)
}

func overlay(defaults, stored interface{}, path []string) (interface{}, error) {
	d, ok := defaults.(map[string]interface{})

	if !ok {
		return Clone(stored), nil
	}

	s, ok := stored.(map[string]interface{})

	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s but its default is an object", ErrTypeMismatch, pathString(path), TypeName(stored))
	}

	result := Clone(d).(map[string]interface{})

	for key, value := range s {
		def, ok := d[key]

		if !ok {
			result[key] = Clone(value)

			continue
		}

		merged, err := overlay(def, value, append(path[:len(path):len(path)], key))

		if err != nil {
			return nil, err
		}

		result[key] = merged
	}

	return result, nil
}

// Split breaks a category document into one row per scope instance.
// The first depth levels of doc are primary key parts and must be
// objects.
func Split(doc interface{}, depth int) ([]Row, error) {
	rows := []Row{}

	if err := split(doc, depth, nil, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

func split(doc interface{}, depth int, key []string, rows *[]Row) error {
	if depth == 0 {
		*rows = append(*rows, Row{Key: key, Value: doc})

		return nil
	}

	m, ok := doc.(map[string]interface{})

	if !ok {
		return fmt.Errorf("%w: primary key level %s is a %s", ErrTypeMismatch, pathString(key), TypeName(doc))
	}

	for _, k := range SortedKeys(m) {
		child := make([]string, len(key), len(key)+1)
		copy(child, key)

		if err := split(m[k], depth-1, append(child, k), rows); err != nil {
			return err
		}
	}

	return nil
}

// Join is the inverse of Split
func Join(rows []Row) (interface{}, error) {
	var doc interface{}

	for _, row := range rows {
		var err error

		if doc, err = Set(doc, row.Key, Clone(row.Value)); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// TypeName names the JSON type of a document node
func TypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "object"
	}

	return fmt.Sprintf("%T", v)
}

func pathString(path []string) string {
	if len(path) == 0 {
		return "root"
	}

	return strings.Join(path, ".")
}
