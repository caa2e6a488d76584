// Package chunker implements fixed-size file chunking, BLAKE3 chunk
// hashing, and the Merkle tree that gives a file its content identity.
package chunker

import "github.com/zeebo/blake3"

// HashSize is the digest length of the session hash primitive.
const HashSize = 32

// Hash is a 32-byte digest of a chunk's bytes, or of a Merkle interior node.
type Hash [HashSize]byte

// HashBytes computes the chunk hash primitive over data.
func HashBytes(data []byte) Hash {
	sum := blake3.Sum256(data)
	return Hash(sum)
}

// HashPair computes H(left || right) for a Merkle interior node.
func HashPair(left, right Hash) Hash {
	h := blake3.New()
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether h is the zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
