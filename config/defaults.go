package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jrife/confdb/storage/document"
)

type kind int

const (
	kindScalar kind = iota
	kindList
	kindObject
)

func (k kind) String() string {
	switch k {
	case kindList:
		return "list"
	case kindObject:
		return "group"
	}

	return "value"
}

// defaultNode is one node of a registered default tree. Registered
// trees are never modified in place: registration merges into a copy
// and swaps it in, so nodes can be read without holding a lock.
type defaultNode struct {
	kind     kind
	value    interface{}
	children map[string]*defaultNode
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// fieldSeparator separates nested field names in a registration key
const fieldSeparator = "__"

func newObject() *defaultNode {
	return &defaultNode{kind: kindObject, children: map[string]*defaultNode{}}
}

// newDefaultNode builds a node from a normalized value
func newDefaultNode(v interface{}) *defaultNode {
	switch v := v.(type) {
	case map[string]interface{}:
		node := newObject()

		for key, child := range v {
			node.children[key] = newDefaultNode(child)
		}

		return node
	case []interface{}:
		return &defaultNode{kind: kindList, value: v}
	}

	return &defaultNode{kind: kindScalar, value: v}
}

// parseFields turns a registration map into a default tree. Keys may
// use "__" to name nested fields. Keys inside map values are not
// validated.
func parseFields(fields map[string]interface{}) (*defaultNode, error) {
	root := newObject()

	for _, key := range document.SortedKeys(fields) {
		parts := strings.Split(key, fieldSeparator)

		for _, part := range parts {
			if !fieldName.MatchString(part) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidField, key)
			}
		}

		value, err := document.Normalize(fields[key])

		if err != nil {
			return nil, fmt.Errorf("default of %q: %w", key, err)
		}

		node := newDefaultNode(value)

		for i := len(parts) - 1; i > 0; i-- {
			parent := newObject()
			parent.children[parts[i]] = node
			node = parent
		}

		wrapper := newObject()
		wrapper.children[parts[0]] = node

		if err := root.merge(wrapper, nil); err != nil {
			return nil, err
		}
	}

	return root, nil
}

func (node *defaultNode) clone() *defaultNode {
	if node == nil {
		return nil
	}

	c := &defaultNode{kind: node.kind, value: node.value}

	if node.children != nil {
		c.children = make(map[string]*defaultNode, len(node.children))

		for key, child := range node.children {
			c.children[key] = child.clone()
		}
	}

	return c
}

// merge adds other into node. Values replace values, groups are merged
// recursively and a value never replaces a group or the other way round.
func (node *defaultNode) merge(other *defaultNode, path []string) error {
	for key, child := range other.children {
		existing, ok := node.children[key]
		childPath := append(path[:len(path):len(path)], key)

		switch {
		case !ok:
			node.children[key] = child.clone()
		case (existing.kind == kindObject) != (child.kind == kindObject):
			return fmt.Errorf("%w: %s cannot be registered as both a group and a value", ErrSchemaConflict, strings.Join(childPath, "."))
		case child.kind == kindObject:
			if err := existing.merge(child, childPath); err != nil {
				return err
			}
		default:
			node.children[key] = child.clone()
		}
	}

	return nil
}

func (node *defaultNode) child(name string) *defaultNode {
	if node == nil || node.kind != kindObject {
		return nil
	}

	return node.children[name]
}

func (node *defaultNode) lookup(path []string) *defaultNode {
	for _, name := range path {
		if node = node.child(name); node == nil {
			return nil
		}
	}

	return node
}

// materialize returns a fresh document holding the defaults under node
func (node *defaultNode) materialize() interface{} {
	if node == nil {
		return nil
	}

	if node.kind != kindObject {
		return document.Clone(node.value)
	}

	m := make(map[string]interface{}, len(node.children))

	for key, child := range node.children {
		m[key] = child.materialize()
	}

	return m
}
