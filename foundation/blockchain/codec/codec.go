// Package codec provides the canonical length-prefixed encoding used for
// hashing, persistence and the wire form of every blockchain value.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ErrMalformedEncoding is returned when input bytes are not a single,
// canonical encoding of a value.
var ErrMalformedEncoding = errors.New("malformed encoding")

// =============================================================================

// Item is either a byte string or an ordered list of items.
type Item struct {
	str    []byte
	list   []Item
	isList bool
}

// String constructs a byte string item.
func String(b []byte) Item {
	return Item{str: b}
}

// List constructs a list item from the specified items.
func List(items ...Item) Item {
	if items == nil {
		items = []Item{}
	}
	return Item{list: items, isList: true}
}

// IsList reports whether the item is a list.
func (it Item) IsList() bool {
	return it.isList
}

// Bytes returns the byte string for a string item and nil for a list.
func (it Item) Bytes() []byte {
	return it.str
}

// Items returns the elements of a list item and nil for a string.
func (it Item) Items() []Item {
	return it.list
}

// Len returns the number of bytes in a string item or elements in a list.
func (it Item) Len() int {
	if it.isList {
		return len(it.list)
	}
	return len(it.str)
}

// Equal reports whether two items have the same structure and content.
func (it Item) Equal(other Item) bool {
	if it.isList != other.isList {
		return false
	}

	if !it.isList {
		return bytes.Equal(it.str, other.str)
	}

	if len(it.list) != len(other.list) {
		return false
	}

	for i := range it.list {
		if !it.list[i].Equal(other.list[i]) {
			return false
		}
	}

	return true
}

// =============================================================================

// Encode returns the canonical encoding of the item.
func Encode(it Item) []byte {
	w := rlp.NewEncoderBuffer(nil)
	encodeItem(w, it)
	return w.ToBytes()
}

func encodeItem(w rlp.EncoderBuffer, it Item) {
	if !it.isList {
		w.WriteBytes(it.str)
		return
	}

	idx := w.List()
	for _, child := range it.list {
		encodeItem(w, child)
	}
	w.ListEnd(idx)
}

// Decode parses exactly one item from the input. Trailing bytes, truncated
// input and non-canonical length prefixes are rejected.
func Decode(b []byte) (Item, error) {
	it, rest, err := decodeItem(b)
	if err != nil {
		return Item{}, err
	}

	if len(rest) != 0 {
		return Item{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEncoding, len(rest))
	}

	return it, nil
}

func decodeItem(b []byte) (Item, []byte, error) {
	if len(b) == 0 {
		return Item{}, nil, fmt.Errorf("%w: empty input", ErrMalformedEncoding)
	}

	kind, content, rest, err := rlp.Split(b)
	if err != nil {
		return Item{}, nil, fmt.Errorf("%w: %s", ErrMalformedEncoding, err)
	}

	switch kind {
	case rlp.Byte, rlp.String:
		str := make([]byte, len(content))
		copy(str, content)
		return String(str), rest, nil
	}

	items := []Item{}
	for len(content) > 0 {
		var child Item
		child, content, err = decodeItem(content)
		if err != nil {
			return Item{}, nil, err
		}
		items = append(items, child)
	}

	return List(items...), rest, nil
}

// =============================================================================

// EncodeValue encodes a Go value with fixed fields, such as a header or
// transaction, into its canonical form.
func EncodeValue(v any) ([]byte, error) {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// DecodeValue decodes canonical bytes into the Go value pointed to by v.
func DecodeValue(b []byte, v any) error {
	if err := rlp.DecodeBytes(b, v); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedEncoding, err)
	}
	return nil
}

// EncodeUint returns the canonical encoding of an unsigned integer.
func EncodeUint(n uint64) []byte {
	b, _ := rlp.EncodeToBytes(n)
	return b
}

// DecodeUint decodes a canonical unsigned integer.
func DecodeUint(b []byte) (uint64, error) {
	var n uint64
	if err := DecodeValue(b, &n); err != nil {
		return 0, err
	}
	return n, nil
}
