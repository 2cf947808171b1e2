package trie

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidNode is returned when stored bytes do not decode into a node.
var ErrInvalidNode = errors.New("invalid trie node")

// =============================================================================

// node is one of *fullNode, *shortNode, hashNode or valueNode. A nil node
// is the blank node.
type node any

type (
	// fullNode is a branch: 16 children by nibble plus a value slot.
	fullNode struct {
		Children [17]node
	}

	// shortNode is a leaf when Key ends with the terminator and an
	// extension otherwise.
	shortNode struct {
		Key []byte
		Val node
	}

	// hashNode references a node stored in the database by its hash.
	hashNode []byte

	// valueNode is the value kept at the end of a key.
	valueNode []byte
)

func (n *fullNode) copy() *fullNode {
	cpy := *n
	return &cpy
}

// =============================================================================

// toItem builds the codec item for a collapsed node, one whose children are
// already hash references or small inline nodes.
func toItem(n node) codec.Item {
	switch n := n.(type) {
	case nil:
		return codec.String(nil)

	case hashNode:
		return codec.String(n)

	case valueNode:
		return codec.String(n)

	case *shortNode:
		return codec.List(codec.String(hexToCompact(n.Key)), toItem(n.Val))

	case *fullNode:
		items := make([]codec.Item, 17)
		for i, child := range n.Children {
			items[i] = toItem(child)
		}
		return codec.List(items...)
	}

	panic(fmt.Sprintf("trie: unknown node type %T", n))
}

// decodeNode parses the stored encoding of a node.
func decodeNode(enc []byte) (node, error) {
	item, err := codec.Decode(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNode, err)
	}

	return fromItem(item)
}

func fromItem(item codec.Item) (node, error) {
	if !item.IsList() {
		return nil, fmt.Errorf("%w: expected a list", ErrInvalidNode)
	}

	items := item.Items()
	switch len(items) {
	case 2:
		if items[0].IsList() {
			return nil, fmt.Errorf("%w: path is a list", ErrInvalidNode)
		}

		key := compactToHex(items[0].Bytes())
		if hasTerm(key) {
			if items[1].IsList() {
				return nil, fmt.Errorf("%w: leaf value is a list", ErrInvalidNode)
			}
			return &shortNode{Key: key, Val: valueNode(items[1].Bytes())}, nil
		}

		child, err := fromRef(items[1])
		if err != nil {
			return nil, err
		}
		return &shortNode{Key: key, Val: child}, nil

	case 17:
		var n fullNode
		for i := 0; i < 16; i++ {
			child, err := fromRef(items[i])
			if err != nil {
				return nil, err
			}
			n.Children[i] = child
		}

		if items[16].IsList() {
			return nil, fmt.Errorf("%w: branch value is a list", ErrInvalidNode)
		}
		if v := items[16].Bytes(); len(v) > 0 {
			n.Children[16] = valueNode(v)
		}
		return &n, nil
	}

	return nil, fmt.Errorf("%w: %d items", ErrInvalidNode, len(items))
}

// fromRef decodes a child reference: empty, a 32 byte hash or an inline node.
func fromRef(item codec.Item) (node, error) {
	if item.IsList() {
		return fromItem(item)
	}

	switch b := item.Bytes(); len(b) {
	case 0:
		return nil, nil
	case 32:
		return hashNode(b), nil
	}

	return nil, fmt.Errorf("%w: reference of %d bytes", ErrInvalidNode, item.Len())
}

// keccak hashes a node encoding.
func keccak(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}

// encodeNode returns the stored form of a collapsed node.
func encodeNode(n node) []byte {
	return codec.Encode(toItem(n))
}
