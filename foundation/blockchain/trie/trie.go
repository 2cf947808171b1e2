// Package trie implements the Merkle-Patricia trie: an authenticated key/value
// store whose root hash commits to its entire content. Nodes live in the
// database keyed by the hash of their encoding and are looked up by hash on
// every traversal.
package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// BlankRoot is the root hash of a trie with no content.
var BlankRoot = common.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// ErrMissingRoot is returned when a trie is opened on a root that is not
// in the database.
var ErrMissingRoot = errors.New("missing trie root")

// Database interface represents the behavior required to read and write
// trie nodes.
type Database interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte)
}

// =============================================================================

// Trie is a handle on one root. Updates move the handle to a new root and
// never remove the nodes of older roots, so any earlier root can be opened
// again.
type Trie struct {
	db   Database
	root node
}

// New opens the trie with the specified root.
func New(db Database, root common.Hash) (*Trie, error) {
	t := Trie{db: db}

	if root == BlankRoot || root == (common.Hash{}) {
		return &t, nil
	}

	if _, err := db.Get(root[:]); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingRoot, root, err)
	}
	t.root = hashNode(root.Bytes())

	return &t, nil
}

// Copy returns an independent handle on the same root.
func (t *Trie) Copy() *Trie {
	return &Trie{db: t.db, root: t.root}
}

// RootHash returns the hash committing to the current content.
func (t *Trie) RootHash() common.Hash {
	switch n := t.root.(type) {
	case nil:
		return BlankRoot
	case hashNode:
		return common.BytesToHash(n)
	}

	// Every operation leaves the root as a hash reference.
	panic("trie: root is not committed")
}

// Get returns the value stored under key. A missing key returns an empty
// value and no error.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.get(t.root, keybytesToHex(key))
}

// Update stores value under key and returns the new root. An empty value
// deletes the key.
func (t *Trie) Update(key []byte, value []byte) (common.Hash, error) {
	if len(value) == 0 {
		return t.Delete(key)
	}

	v := make([]byte, len(value))
	copy(v, value)

	n, err := t.insert(t.root, keybytesToHex(key), valueNode(v))
	if err != nil {
		return common.Hash{}, err
	}

	return t.setRoot(n)
}

// Delete removes key and returns the new root. Deleting a missing key leaves
// the root unchanged.
func (t *Trie) Delete(key []byte) (common.Hash, error) {
	dirty, n, err := t.delete(t.root, keybytesToHex(key))
	if err != nil {
		return common.Hash{}, err
	}

	if !dirty {
		return t.RootHash(), nil
	}

	return t.setRoot(n)
}

// =============================================================================

func (t *Trie) setRoot(n node) (common.Hash, error) {
	root, err := t.commit(n, true)
	if err != nil {
		return common.Hash{}, err
	}

	t.root = root
	return t.RootHash(), nil
}

// resolve loads a referenced node from the database.
func (t *Trie) resolve(n node) (node, error) {
	hash, ok := n.(hashNode)
	if !ok {
		return n, nil
	}

	enc, err := t.db.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("resolve node %x: %w", []byte(hash), err)
	}

	return decodeNode(enc)
}

func (t *Trie) get(n node, key []byte) ([]byte, error) {
	for {
		switch nd := n.(type) {
		case nil:
			return nil, nil

		case valueNode:
			return nd, nil

		case *shortNode:
			if len(key) < len(nd.Key) || !bytes.Equal(nd.Key, key[:len(nd.Key)]) {
				return nil, nil
			}
			key = key[len(nd.Key):]
			n = nd.Val

		case *fullNode:
			n = nd.Children[key[0]]
			key = key[1:]

		case hashNode:
			rn, err := t.resolve(nd)
			if err != nil {
				return nil, err
			}
			n = rn
		}
	}
}

func (t *Trie) insert(n node, key []byte, value node) (node, error) {
	if len(key) == 0 {
		return value, nil
	}

	switch n := n.(type) {
	case nil:
		return &shortNode{Key: key, Val: value}, nil

	case *shortNode:
		matchlen := prefixLen(key, n.Key)

		// The whole path of this node matches, keep going below it.
		if matchlen == len(n.Key) {
			nn, err := t.insert(n.Val, key[matchlen:], value)
			if err != nil {
				return nil, err
			}
			return &shortNode{Key: n.Key, Val: nn}, nil
		}

		// The paths diverge, so a branch goes where they split.
		branch := &fullNode{}

		var err error
		branch.Children[n.Key[matchlen]], err = t.insert(nil, n.Key[matchlen+1:], n.Val)
		if err != nil {
			return nil, err
		}

		branch.Children[key[matchlen]], err = t.insert(nil, key[matchlen+1:], value)
		if err != nil {
			return nil, err
		}

		if matchlen == 0 {
			return branch, nil
		}

		return &shortNode{Key: key[:matchlen], Val: branch}, nil

	case *fullNode:
		nn, err := t.insert(n.Children[key[0]], key[1:], value)
		if err != nil {
			return nil, err
		}

		cpy := n.copy()
		cpy.Children[key[0]] = nn
		return cpy, nil

	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return nil, err
		}
		return t.insert(rn, key, value)
	}

	return nil, fmt.Errorf("%w: %T", ErrInvalidNode, n)
}

// delete removes key below n and reports whether anything changed. The result
// is always in canonical form: no branch is left with a single entry and no
// short node points at another short node.
func (t *Trie) delete(n node, key []byte) (bool, node, error) {
	switch n := n.(type) {
	case nil:
		return false, nil, nil

	case valueNode:
		return true, nil, nil

	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		if matchlen < len(n.Key) {
			return false, n, nil
		}
		if matchlen == len(key) {
			return true, nil, nil
		}

		dirty, child, err := t.delete(n.Val, key[len(n.Key):])
		if !dirty || err != nil {
			return false, n, err
		}

		switch child := child.(type) {
		case nil:
			return true, nil, nil
		case *shortNode:
			return true, &shortNode{Key: concat(n.Key, child.Key), Val: child.Val}, nil
		default:
			return true, &shortNode{Key: n.Key, Val: child}, nil
		}

	case *fullNode:
		dirty, nn, err := t.delete(n.Children[key[0]], key[1:])
		if !dirty || err != nil {
			return false, n, err
		}

		cpy := n.copy()
		cpy.Children[key[0]] = nn

		// Find out if a single entry is left.
		pos := -1
		for i, child := range cpy.Children {
			if child != nil {
				if pos != -1 {
					return true, cpy, nil
				}
				pos = i
			}
		}

		if pos == -1 {
			return true, nil, nil
		}

		// Only the value slot is left, it becomes a leaf with an empty path.
		if pos == terminator {
			return true, &shortNode{Key: []byte{terminator}, Val: cpy.Children[pos]}, nil
		}

		child, err := t.resolve(cpy.Children[pos])
		if err != nil {
			return false, n, err
		}

		if sn, ok := child.(*shortNode); ok {
			return true, &shortNode{Key: concat([]byte{byte(pos)}, sn.Key), Val: sn.Val}, nil
		}

		return true, &shortNode{Key: []byte{byte(pos)}, Val: cpy.Children[pos]}, nil

	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return false, n, err
		}

		dirty, nn, err := t.delete(rn, key)
		if !dirty || err != nil {
			return false, n, err
		}
		return true, nn, nil
	}

	return false, n, fmt.Errorf("%w: %T", ErrInvalidNode, n)
}

// commit collapses n bottom up. Nodes whose encoding is at least 32 bytes are
// written to the database and replaced by their hash, smaller ones stay
// inline in their parent. The root is always written.
func (t *Trie) commit(n node, force bool) (node, error) {
	var collapsed node

	switch n := n.(type) {
	case nil, hashNode, valueNode:
		return n, nil

	case *shortNode:
		cpy := &shortNode{Key: n.Key, Val: n.Val}
		if _, ok := n.Val.(valueNode); !ok {
			child, err := t.commit(n.Val, false)
			if err != nil {
				return nil, err
			}
			cpy.Val = child
		}
		collapsed = cpy

	case *fullNode:
		cpy := n.copy()
		for i := 0; i < 16; i++ {
			child, err := t.commit(cpy.Children[i], false)
			if err != nil {
				return nil, err
			}
			cpy.Children[i] = child
		}
		collapsed = cpy

	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidNode, n)
	}

	enc := encodeNode(collapsed)
	if len(enc) < 32 && !force {
		return collapsed, nil
	}

	hash := keccak(enc)
	t.db.Put(hash, enc)

	return hashNode(hash), nil
}

func concat(a, b []byte) []byte {
	r := make([]byte, len(a)+len(b))
	copy(r, a)
	copy(r[len(a):], b)
	return r
}
