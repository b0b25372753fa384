package keys

// Range represents all keys such that
//   k >= Min and k < Max
// If Max = nil that indicates the end of all keys
type Range struct {
	Min Key
	Max Key
}

// Prefix returns the range of every composite key whose primary key
// starts with parts, including the key for parts itself.
func Prefix(parts []string) Range {
	min := Encode(parts)

	return Range{Min: min, Max: Inc(min)}
}

// Contains reports whether k falls inside the range
func (r Range) Contains(k Key) bool {
	if Compare(k, r.Min) < 0 {
		return false
	}

	return r.Max == nil || Compare(k, r.Max) < 0
}
