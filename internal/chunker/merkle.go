package chunker

// MerkleRoot computes the Merkle root over an ordered sequence of chunk
// hashes. Interior nodes are H(left || right). When a level has an odd
// number of nodes, the lone trailing node is promoted unchanged to the
// next level — it is never duplicated. The empty-sequence root is H("").
func MerkleRoot(hashes []Hash) Hash {
	if len(hashes) == 0 {
		return HashBytes(nil)
	}

	level := make([]Hash, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		i := 0
		for ; i+1 < len(level); i += 2 {
			next = append(next, HashPair(level[i], level[i+1]))
		}
		if i < len(level) {
			// odd trailing node: promote unchanged, do not duplicate
			next = append(next, level[i])
		}
		level = next
	}

	return level[0]
}
