package trie

// Iterate calls fn for every key/value pair in key order. Iteration stops at
// the first error returned by fn.
func (t *Trie) Iterate(fn func(key []byte, value []byte) error) error {
	return t.walk(t.root, nil, fn)
}

func (t *Trie) walk(n node, path []byte, fn func(key []byte, value []byte) error) error {
	switch n := n.(type) {
	case nil:
		return nil

	case valueNode:
		return fn(hexToKeybytes(path), n)

	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return err
		}
		return t.walk(rn, path, fn)

	case *shortNode:
		return t.walk(n.Val, concat(path, n.Key), fn)

	case *fullNode:
		if n.Children[terminator] != nil {
			if err := t.walk(n.Children[terminator], path, fn); err != nil {
				return err
			}
		}
		for i := 0; i < 16; i++ {
			if err := t.walk(n.Children[i], concat(path, []byte{byte(i)}), fn); err != nil {
				return err
			}
		}
	}

	return nil
}
