package memory

import (
	"fmt"
	"sort"

	"github.com/jrife/confdb/storage/document"
	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
)

// Tree holds the documents of every owner as one nested object per
// owner: category, then primary key parts, then field path. It is not
// safe for concurrent use.
type Tree struct {
	owners map[identifier.Owner]map[string]interface{}
}

// NewTree returns an empty tree
func NewTree() *Tree {
	return &Tree{owners: map[identifier.Owner]map[string]interface{}{}}
}

func treePath(id identifier.Identifier) []string {
	if id.Category == "" {
		return nil
	}

	return append([]string{id.Category}, id.Path()...)
}

// Get returns a copy of the value at id
func (tree *Tree) Get(id identifier.Identifier) (interface{}, error) {
	root, ok := tree.owners[id.Owner]

	if !ok {
		return nil, fmt.Errorf("%w: %s", driver.ErrNotFound, id)
	}

	value, ok := document.Get(root, treePath(id))

	if !ok {
		return nil, fmt.Errorf("%w: %s", driver.ErrNotFound, id)
	}

	return document.Clone(value), nil
}

// Set stores a copy of value at id
func (tree *Tree) Set(id identifier.Identifier, value interface{}) error {
	value, err := document.Normalize(value)

	if err != nil {
		return err
	}

	if err := driver.CheckInstances(id, value); err != nil {
		return err
	}

	path := treePath(id)

	if len(path) == 0 {
		m, ok := value.(map[string]interface{})

		if !ok {
			return fmt.Errorf("%w: the document of an owner must be an object", driver.ErrSchemaConflict)
		}

		tree.owners[id.Owner] = m

		return nil
	}

	root, err := document.Set(tree.owners[id.Owner], path, value)

	if err != nil {
		return err
	}

	tree.owners[id.Owner] = root.(map[string]interface{})

	return nil
}

// Clear deletes the value at id. It reports whether anything was
// deleted.
func (tree *Tree) Clear(id identifier.Identifier) bool {
	root, ok := tree.owners[id.Owner]

	if !ok {
		return false
	}

	path := treePath(id)

	if len(path) == 0 {
		delete(tree.owners, id.Owner)

		return true
	}

	if _, ok := document.Get(root, path); !ok {
		return false
	}

	document.Delete(root, path)
	tree.prune(id, path[:len(path)-1])

	return true
}

// prune removes the category and partial primary key objects along
// parent that became empty, then the owner itself if nothing is left.
// Instance documents are kept even when empty.
func (tree *Tree) prune(id identifier.Identifier, parent []string) {
	root := tree.owners[id.Owner]
	depth := len(parent)

	if depth > id.Arity {
		depth = id.Arity
	}

	for ; depth > 0; depth-- {
		value, _ := document.Get(root, parent[:depth])

		if m, ok := value.(map[string]interface{}); !ok || len(m) > 0 {
			break
		}

		document.Delete(root, parent[:depth])
	}

	if len(root) == 0 {
		delete(tree.owners, id.Owner)
	}
}

// Owners lists the owners that have a document in ascending order
func (tree *Tree) Owners() []identifier.Owner {
	owners := make([]identifier.Owner, 0, len(tree.owners))

	for owner, root := range tree.owners {
		if len(root) > 0 {
			owners = append(owners, owner)
		}
	}

	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Name != owners[j].Name {
			return owners[i].Name < owners[j].Name
		}

		return owners[i].UniqueID < owners[j].UniqueID
	})

	return owners
}

// Document returns the whole document of owner without copying it
func (tree *Tree) Document(owner identifier.Owner) (map[string]interface{}, bool) {
	root, ok := tree.owners[owner]

	return root, ok
}

// Load replaces the whole document of owner
func (tree *Tree) Load(owner identifier.Owner, root map[string]interface{}) {
	tree.owners[owner] = root
}
