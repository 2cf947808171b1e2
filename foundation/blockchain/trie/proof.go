package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrProofInvalid is returned when a proof does not connect the key to the root.
var ErrProofInvalid = errors.New("invalid proof")

// Prove returns the encodings of the stored nodes on the path to key. The
// proof also works to show that a key is absent.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	var proof [][]byte

	n, k := t.root, keybytesToHex(key)
	for {
		switch nd := n.(type) {
		case nil, valueNode:
			return proof, nil

		case hashNode:
			enc, err := t.db.Get(nd)
			if err != nil {
				return nil, fmt.Errorf("prove: %w", err)
			}
			proof = append(proof, enc)

			if n, err = decodeNode(enc); err != nil {
				return nil, err
			}

		case *shortNode:
			if len(k) < len(nd.Key) || !bytes.Equal(nd.Key, k[:len(nd.Key)]) {
				return proof, nil
			}
			k = k[len(nd.Key):]
			n = nd.Val

		case *fullNode:
			n = nd.Children[k[0]]
			k = k[1:]
		}
	}
}

// VerifyProof checks the proof against root and returns the value stored
// under key, which is empty when the proof shows the key is absent.
func VerifyProof(root common.Hash, key []byte, proof [][]byte) ([]byte, error) {
	db := make(proofDB, len(proof))
	for _, enc := range proof {
		db[string(keccak(enc))] = enc
	}

	t := Trie{db: db, root: hashNode(root.Bytes())}
	if root == BlankRoot {
		t.root = nil
	}

	v, err := t.Get(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProofInvalid, err)
	}

	return v, nil
}

// proofDB serves the nodes of a proof by hash.
type proofDB map[string][]byte

func (db proofDB) Get(key []byte) ([]byte, error) {
	enc, exists := db[string(key)]
	if !exists {
		return nil, fmt.Errorf("node %x not in proof", key)
	}
	return enc, nil
}

func (db proofDB) Put(key []byte, value []byte) {}
