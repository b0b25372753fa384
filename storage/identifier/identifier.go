// Package identifier defines the composite address of every value in
// the store: which owner it belongs to, which scope category and scope
// instance it lives under and where inside that instance's document it
// sits.
//
//  - Owner (name + unique id)
//    - Category (GLOBAL, GUILD, ..., or a custom category)
//      - Primary key (selects one scope instance, fixed arity per category)
//        - Field path (nested keys inside the instance document)
//
// Identifiers are values. Deriving a child identifier never modifies
// the parent.
package identifier

import (
	"strconv"
	"strings"
)

// Built-in scope categories
const (
	Global  = "GLOBAL"
	Guild   = "GUILD"
	Channel = "TEXTCHANNEL"
	Role    = "ROLE"
	User    = "USER"
	Member  = "MEMBER"
)

var builtinArity = map[string]int{
	Global:  0,
	Guild:   1,
	Channel: 1,
	Role:    1,
	User:    1,
	Member:  2,
}

// BuiltinCategories lists the built-in categories in a stable order
func BuiltinCategories() []string {
	return []string{Global, Guild, Channel, Role, User, Member}
}

// BuiltinArity returns the primary key arity of a built-in category.
// ok is false if category is not built in.
func BuiltinArity(category string) (arity int, ok bool) {
	arity, ok = builtinArity[category]

	return arity, ok
}

// IsBuiltin reports whether category is one of the built-in categories
func IsBuiltin(category string) bool {
	_, ok := builtinArity[category]

	return ok
}

// Owner identifies one configuration namespace: the application
// that owns it and a unique id distinguishing several namespaces of
// the same application.
type Owner struct {
	Name     string
	UniqueID string
}

// String returns name/unique id
func (owner Owner) String() string {
	return owner.Name + "/" + owner.UniqueID
}

// ParseOwner parses the output of Owner.String
func ParseOwner(s string) (Owner, bool) {
	i := strings.LastIndex(s, "/")

	if i <= 0 || i == len(s)-1 {
		return Owner{}, false
	}

	return Owner{Name: s[:i], UniqueID: s[i+1:]}, true
}

// Identifier addresses one node of the store.
type Identifier struct {
	Owner      Owner
	Category   string
	PrimaryKey []string
	FieldPath  []string
	// Arity is the declared primary key arity of Category. It does
	// not participate in equality.
	Arity int
}

// New returns the identifier of the root of category for owner
func New(owner Owner, category string, arity int) Identifier {
	return Identifier{Owner: owner, Category: category, Arity: arity}
}

// WithPrimaryKey returns a copy of the identifier with parts appended
// to its primary key
func (id Identifier) WithPrimaryKey(parts ...string) Identifier {
	id.PrimaryKey = appendCopy(id.PrimaryKey, parts)
	id.FieldPath = appendCopy(id.FieldPath, nil)

	return id
}

// WithField returns a copy of the identifier with parts appended to
// its field path
func (id Identifier) WithField(parts ...string) Identifier {
	id.PrimaryKey = appendCopy(id.PrimaryKey, nil)
	id.FieldPath = appendCopy(id.FieldPath, parts)

	return id
}

// CategoryRoot returns the identifier of the whole category
func (id Identifier) CategoryRoot() Identifier {
	return Identifier{Owner: id.Owner, Category: id.Category, Arity: id.Arity}
}

// PrimaryKeyComplete reports whether the primary key selects exactly
// one scope instance
func (id Identifier) PrimaryKeyComplete() bool {
	return len(id.PrimaryKey) >= id.Arity
}

// MissingKeys returns how many primary key parts are still missing
func (id Identifier) MissingKeys() int {
	if missing := id.Arity - len(id.PrimaryKey); missing > 0 {
		return missing
	}

	return 0
}

// Path returns the primary key followed by the field path. This is
// the location of the node inside the category document.
func (id Identifier) Path() []string {
	return appendCopy(id.PrimaryKey, id.FieldPath)
}

// Equal compares everything except Arity
func (id Identifier) Equal(other Identifier) bool {
	return id.Owner == other.Owner &&
		id.Category == other.Category &&
		equalParts(id.PrimaryKey, other.PrimaryKey) &&
		equalParts(id.FieldPath, other.FieldPath)
}

// Key returns a string that is equal for two identifiers if and only
// if they are Equal. It is meant for map keys.
func (id Identifier) Key() string {
	var b strings.Builder

	writeParts(&b, []string{id.Owner.Name, id.Owner.UniqueID, id.Category})
	b.WriteByte('|')
	writeParts(&b, id.PrimaryKey)
	b.WriteByte('|')
	writeParts(&b, id.FieldPath)

	return b.String()
}

// Segments returns the non-empty parts of the identifier in order:
// owner name, unique id, category, primary key, field path
func (id Identifier) Segments() []string {
	all := []string{id.Owner.Name, id.Owner.UniqueID, id.Category}
	all = append(all, id.PrimaryKey...)
	all = append(all, id.FieldPath...)
	segments := make([]string, 0, len(all))

	for _, segment := range all {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return segments
}

// String is meant for logs
func (id Identifier) String() string {
	return strings.Join(id.Segments(), ".")
}

func writeParts(b *strings.Builder, parts []string) {
	for _, part := range parts {
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
}

func appendCopy(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}

	result := make([]string, 0, len(a)+len(b))
	result = append(result, a...)

	return append(result, b...)
}

func equalParts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
