package keys

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrMalformedKey is returned when decoding bytes that were not
// produced by Encode
var ErrMalformedKey = errors.New("malformed composite key")

// marker prefixes every encoded key so that the empty primary key
// (used by the global category) still encodes to a non-empty key.
const marker byte = 0x01

// Key is a single key
type Key []byte

// Compare compares two keys
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// Inc returns the smallest key that is greater than every key
// prefixed by key. It returns nil if no such key exists, which
// callers should read as "no upper bound".
func Inc(key Key) Key {
	carry := true
	after := make(Key, len(key))

	copy(after, key)

	for i := len(after) - 1; i >= 0 && carry; i-- {
		if key[i] < 0xff {
			carry = false
		}

		after[i] = key[i] + 1
	}

	if carry {
		return nil
	}

	// Drop the bytes that wrapped around to zero.
	for len(after) > 0 && after[len(after)-1] == 0 && key[len(after)-1] == 0xff {
		after = after[:len(after)-1]
	}

	return after
}

// Encode encodes a primary key as a composite key. Encodings of
// a key's prefixes are byte prefixes of the key's encoding, so a
// partial primary key can be turned into a scan range with Prefix.
func Encode(parts []string) Key {
	size := 1

	for _, part := range parts {
		size += binary.MaxVarintLen64 + len(part)
	}

	key := make(Key, 1, size)
	key[0] = marker

	for _, part := range parts {
		key = binary.AppendUvarint(key, uint64(len(part)))
		key = append(key, part...)
	}

	return key
}

// Decode reverses Encode
func Decode(key Key) ([]string, error) {
	if len(key) == 0 || key[0] != marker {
		return nil, ErrMalformedKey
	}

	parts := []string{}
	rest := key[1:]

	for len(rest) > 0 {
		length, n := binary.Uvarint(rest)

		if n <= 0 || uint64(len(rest)-n) < length {
			return nil, ErrMalformedKey
		}

		rest = rest[n:]
		parts = append(parts, string(rest[:length]))
		rest = rest[length:]
	}

	return parts, nil
}
