package chunker

import "testing"

func TestMerkleRoot_Empty(t *testing.T) {
	root := MerkleRoot(nil)
	if root != HashBytes(nil) {
		t.Error("empty merkle root should equal H(\"\")")
	}
}

func TestMerkleRoot_SingleLeaf(t *testing.T) {
	leaf := HashBytes([]byte("a"))
	if MerkleRoot([]Hash{leaf}) != leaf {
		t.Error("single-leaf root should equal the leaf itself")
	}
}

func TestMerkleRoot_OddPromotion(t *testing.T) {
	// Three leaves: level 1 pairs (0,1) and promotes 2 unchanged; the
	// final level then pairs the interior hash with the promoted leaf.
	h0 := HashBytes([]byte("a"))
	h1 := HashBytes([]byte("b"))
	h2 := HashBytes([]byte("c"))

	got := MerkleRoot([]Hash{h0, h1, h2})
	want := HashPair(HashPair(h0, h1), h2)
	if got != want {
		t.Errorf("odd-node promotion mismatch: got %x want %x", got, want)
	}

	// Must NOT duplicate the trailing node.
	duplicated := HashPair(HashPair(h0, h1), HashPair(h2, h2))
	if got == duplicated {
		t.Error("merkle root incorrectly duplicated the odd trailing node")
	}
}

func TestMerkleRoot_Deterministic(t *testing.T) {
	hashes := []Hash{HashBytes([]byte("x")), HashBytes([]byte("y")), HashBytes([]byte("z")), HashBytes([]byte("w"))}
	if MerkleRoot(hashes) != MerkleRoot(hashes) {
		t.Error("merkle root must be deterministic across runs")
	}
}
