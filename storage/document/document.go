// Package document implements the value model shared by every driver.
//
// A document is a JSON-compatible tree made of nil, bool, int64,
// float64, string, []any and map[string]any. Values coming from
// callers are converted into this model with Normalize, which also
// deep copies them and turns every map key into a string, so that
// nothing a caller holds aliases what a driver stores.
package document

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

var (
	// ErrSchemaConflict is returned when a value would have to be
	// written into something that is not an object
	ErrSchemaConflict = errors.New("schema conflict")
	// ErrTypeMismatch is returned when a stored value does not have the
	// shape an operation requires
	ErrTypeMismatch = errors.New("stored type mismatch")
	// ErrUnsupportedValue is returned by Normalize for values with no
	// JSON representation
	ErrUnsupportedValue = errors.New("value is not JSON compatible")
)

// Row is one scope instance of a category document: its primary key
// and its document
type Row struct {
	Key   []string
	Value interface{}
}

// Normalize converts v into the document model. The result never
// shares memory with v.
func Normalize(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case map[string]interface{}:
		result := make(map[string]interface{}, len(x))

		for key, value := range x {
			normalized, err := Normalize(value)

			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			result[key] = normalized
		}

		return result, nil
	case []interface{}:
		result := make([]interface{}, len(x))

		for i, value := range x {
			normalized, err := Normalize(value)

			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			result[i] = normalized
		}

		return result, nil
	}

	return normalizeReflect(reflect.ValueOf(v))
}

func normalizeReflect(rv reflect.Value) (interface{}, error) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}

		return Normalize(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u), nil
		}

		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Map:
		result := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()

		for iter.Next() {
			key := keyString(iter.Key())
			normalized, err := Normalize(iter.Value().Interface())

			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			result[key] = normalized
		}

		return result, nil
	case reflect.Slice, reflect.Array:
		result := make([]interface{}, rv.Len())

		for i := 0; i < rv.Len(); i++ {
			normalized, err := Normalize(rv.Index(i).Interface())

			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			result[i] = normalized
		}

		return result, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type())
}

func keyString(key reflect.Value) string {
	for key.Kind() == reflect.Interface && !key.IsNil() {
		key = key.Elem()
	}

	switch key.Kind() {
	case reflect.String:
		return key.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(key.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(key.Uint(), 10)
	}

	return fmt.Sprint(key.Interface())
}

// Clone deep copies a value that is already in the document model
func Clone(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(x))

		for key, value := range x {
			result[key] = Clone(value)
		}

		return result
	case []interface{}:
		result := make([]interface{}, len(x))

		for i, value := range x {
			result[i] = Clone(value)
		}

		return result
	}

	return v
}

// Equal compares two documents structurally. Numbers compare by value
// regardless of whether they are int64 or float64.
func Equal(a, b interface{}) bool {
	if an, ok := number(a); ok {
		bn, ok := number(b)

		return ok && an == bn
	}

	switch x := a.(type) {
	case map[string]interface{}:
		y, ok := b.(map[string]interface{})

		if !ok || len(x) != len(y) {
			return false
		}

		for key, value := range x {
			other, ok := y[key]

			if !ok || !Equal(value, other) {
				return false
			}
		}

		return true
	case []interface{}:
		y, ok := b.([]interface{})

		if !ok || len(x) != len(y) {
			return false
		}

		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}

		return true
	}

	return a == b
}

// IsNumber reports whether v is an int64 or a float64
func IsNumber(v interface{}) bool {
	_, ok := number(v)

	return ok
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}

	return 0, false
}

// Add adds two numbers. The result is an int64 if both operands are
// int64 and a float64 otherwise.
func Add(a, b interface{}) (interface{}, error) {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return x + y, nil
		}
	}

	x, ok := number(a)

	if !ok {
		return nil, fmt.Errorf("%w: %T is not a number", ErrTypeMismatch, a)
	}

	y, ok := number(b)

	if !ok {
		return nil, fmt.Errorf("%w: %T is not a number", ErrTypeMismatch, b)
	}

	return x + y, nil
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))

	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Decode parses JSON into the document model
func Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}

	v, err := oj.Parse(data)

	if err != nil {
		return nil, fmt.Errorf("could not decode document: %w", err)
	}

	return v, nil
}

// jsonFloat keeps a fraction or exponent on every float so that it
// decodes as a float64 again
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return nil, fmt.Errorf("%w: %v has no JSON representation", ErrUnsupportedValue, float64(f))
	}

	out := strconv.AppendFloat(nil, float64(f), 'g', -1, 64)

	for _, c := range out {
		if c == '.' || c == 'e' {
			return out, nil
		}
	}

	return append(out, ".0"...), nil
}

// encodable copies the containers of v, replacing floats with
// jsonFloat
func encodable(v interface{}) interface{} {
	switch v := v.(type) {
	case float64:
		return jsonFloat(v)
	case []interface{}:
		out := make([]interface{}, len(v))

		for i, item := range v {
			out[i] = encodable(item)
		}

		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))

		for key, item := range v {
			out[key] = encodable(item)
		}

		return out
	}

	return v
}

// Encode serializes a document as JSON with sorted keys. Floats keep
// their type through Decode, so 2.0 is written as 2.0 and not 2.
func Encode(v interface{}) ([]byte, error) {
	data, err := oj.Marshal(encodable(v), &ojg.Options{Sort: true})

	if err != nil {
		return nil, fmt.Errorf("could not encode document: %w", err)
	}

	return data, nil
}

// EncodeIndent is like Encode but indents nested values
func EncodeIndent(v interface{}, indent int) ([]byte, error) {
	data, err := oj.Marshal(encodable(v), &ojg.Options{Sort: true, Indent: indent})

	if err != nil {
		return nil, fmt.Errorf("could not encode document: %w", err)
	}

	return data, nil
}
