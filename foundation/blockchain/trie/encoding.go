package trie

// Keys are handled in three forms. Key bytes are what callers pass in. Hex
// form has one nibble per byte and ends with the terminator when the path
// leads to a value. Compact form is the hex-prefix encoding stored in nodes.

const terminator = 16

// keybytesToHex expands a key into nibbles followed by the terminator.
func keybytesToHex(key []byte) []byte {
	l := len(key)*2 + 1
	nibbles := make([]byte, l)
	for i, b := range key {
		nibbles[i*2] = b / 16
		nibbles[i*2+1] = b % 16
	}
	nibbles[l-1] = terminator
	return nibbles
}

// hexToKeybytes packs nibbles back into bytes. The input must have an even
// number of nibbles once the terminator is removed.
func hexToKeybytes(hex []byte) []byte {
	if hasTerm(hex) {
		hex = hex[:len(hex)-1]
	}
	key := make([]byte, len(hex)/2)
	decodeNibbles(hex, key)
	return key
}

// hexToCompact applies hex-prefix encoding. The flag nibble records if the
// path belongs to a leaf and if the nibble count is odd.
func hexToCompact(hex []byte) []byte {
	var flag byte
	if hasTerm(hex) {
		flag = 1 << 5
		hex = hex[:len(hex)-1]
	}

	buf := make([]byte, len(hex)/2+1)
	buf[0] = flag
	if len(hex)&1 == 1 {
		buf[0] |= 1 << 4
		buf[0] |= hex[0]
		hex = hex[1:]
	}
	decodeNibbles(hex, buf[1:])

	return buf
}

// compactToHex reverses hexToCompact.
func compactToHex(compact []byte) []byte {
	if len(compact) == 0 {
		return compact
	}

	base := keybytesToHex(compact)
	base = base[:len(base)-1]

	// Even paths carry a padding nibble after the flag.
	chop := 2 - base[0]&1

	if base[0]&2 != 0 {
		hex := make([]byte, len(base)-int(chop)+1)
		copy(hex, base[chop:])
		hex[len(hex)-1] = terminator
		return hex
	}

	return base[chop:]
}

func decodeNibbles(nibbles []byte, bytes []byte) {
	for bi, ni := 0, 0; ni < len(nibbles); bi, ni = bi+1, ni+2 {
		bytes[bi] = nibbles[ni]<<4 | nibbles[ni+1]
	}
}

// prefixLen returns the length of the common prefix of a and b.
func prefixLen(a, b []byte) int {
	i, length := 0, len(a)
	if len(b) < length {
		length = len(b)
	}
	for ; i < length; i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}

func hasTerm(s []byte) bool {
	return len(s) > 0 && s[len(s)-1] == terminator
}
