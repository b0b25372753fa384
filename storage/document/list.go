package document

// ResolveIndex turns a possibly negative index into a position in a
// list of length n. ok is false if the index is out of range.
func ResolveIndex(index, n int) (int, bool) {
	if index < 0 {
		index += n
	}

	return index, index >= 0 && index < n
}

// Unbounded is the maxLength of Extend and Insert that never truncates
const Unbounded = -1

// Extend adds items to one end of list. Unless maxLength is negative
// the result is truncated to maxLength from the other end. The input list
// is not modified.
func Extend(list, items []interface{}, maxLength int, prepend bool) []interface{} {
	result := make([]interface{}, 0, len(list)+len(items))

	if prepend {
		result = append(append(result, items...), list...)
	} else {
		result = append(append(result, list...), items...)
	}

	if maxLength < 0 || len(result) <= maxLength {
		return result
	}

	if prepend {
		return result[:maxLength]
	}

	return result[len(result)-maxLength:]
}

// Insert inserts item before index with the clamping rules of a
// sequence insert: negative indexes count from the end and indexes
// past either end insert at that end. Unless maxLength is negative
// the result is truncated to maxLength by dropping from the end. The input list is not
// modified.
func Insert(list []interface{}, index int, item interface{}, maxLength int) []interface{} {
	n := len(list)

	if index < 0 {
		index += n

		if index < 0 {
			index = 0
		}
	} else if index > n {
		index = n
	}

	result := make([]interface{}, 0, n+1)
	result = append(result, list[:index]...)
	result = append(result, item)
	result = append(result, list[index:]...)

	if maxLength >= 0 && len(result) > maxLength {
		result = result[:maxLength]
	}

	return result
}

// IndexOf returns the position of the first element Equal to item or
// -1
func IndexOf(list []interface{}, item interface{}) int {
	for i, element := range list {
		if Equal(element, item) {
			return i
		}
	}

	return -1
}
