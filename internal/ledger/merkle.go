package ledger

import (
	"crypto/sha256"
	"encoding/hex"
)

// MerkleRoot reduces a batch of leaf hashes (hex strings, oldest first) to
// a single root by repeated pairwise hashing. A level with an odd count
// pairs its last element with itself. A single leaf is its own root; an
// empty batch has no root and returns "".
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}

	layer := append([]string(nil), leaves...)
	for len(layer) > 1 {
		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			sum := sha256.Sum256([]byte(left + right))
			next = append(next, hex.EncodeToString(sum[:]))
		}
		layer = next
	}
	return layer[0]
}
