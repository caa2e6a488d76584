package diffplan

import (
	"reflect"
	"testing"

	"github.com/leafsync/leafsync/internal/chunker"
)

func h(b byte) chunker.Hash {
	var out chunker.Hash
	out[0] = b
	return out
}

func TestCompute_AbsentLocally(t *testing.T) {
	remote := &chunker.FileManifest{
		RelativePath: "a.bin",
		ChunkSize:    1024,
		ChunkHashes:  []chunker.Hash{h(1), h(2), h(3)},
	}
	plan := Compute(nil, remote)
	if plan.Action != ActionFetch {
		t.Fatal("expected fetch action")
	}
	if !reflect.DeepEqual(plan.Indices, []uint32{0, 1, 2}) {
		t.Errorf("expected all indices, got %v", plan.Indices)
	}
}

func TestCompute_SameRoot(t *testing.T) {
	hashes := []chunker.Hash{h(1), h(2)}
	local := &chunker.FileManifest{ChunkSize: 1024, ChunkHashes: hashes, Root: chunker.MerkleRoot(hashes)}
	remote := &chunker.FileManifest{RelativePath: "a.bin", ChunkSize: 1024, ChunkHashes: hashes, Root: chunker.MerkleRoot(hashes)}

	plan := Compute(local, remote)
	if plan.Action != ActionNone || len(plan.Indices) != 0 {
		t.Fatal("expected no-op plan when roots match")
	}
}

func TestCompute_PartialDivergenceAndTail(t *testing.T) {
	local := &chunker.FileManifest{
		ChunkSize:   1024,
		ChunkHashes: []chunker.Hash{h(1), h(9), h(3)},
	}
	local.Root = chunker.MerkleRoot(local.ChunkHashes)
	remote := &chunker.FileManifest{
		RelativePath: "a.bin",
		ChunkSize:    1024,
		ChunkHashes:  []chunker.Hash{h(1), h(2), h(3), h(4)},
	}
	remote.Root = chunker.MerkleRoot(remote.ChunkHashes)

	plan := Compute(local, remote)
	if !reflect.DeepEqual(plan.Indices, []uint32{1, 3}) {
		t.Errorf("expected indices [1 3], got %v", plan.Indices)
	}
}

func TestCompute_ChunkSizeMismatchForcesFullFetch(t *testing.T) {
	local := &chunker.FileManifest{ChunkSize: 512, ChunkHashes: []chunker.Hash{h(1)}}
	remote := &chunker.FileManifest{RelativePath: "a.bin", ChunkSize: 1024, ChunkHashes: []chunker.Hash{h(1), h(2)}}

	plan := Compute(local, remote)
	if !reflect.DeepEqual(plan.Indices, []uint32{0, 1}) {
		t.Errorf("expected full fetch on chunk size mismatch, got %v", plan.Indices)
	}
}

func TestCompute_LocalLongerRequiresTruncate(t *testing.T) {
	hashes := []chunker.Hash{h(1), h(2)}
	local := &chunker.FileManifest{ChunkSize: 1024, ChunkHashes: []chunker.Hash{h(1), h(2), h(3)}}
	remote := &chunker.FileManifest{RelativePath: "a.bin", ChunkSize: 1024, ChunkHashes: hashes}
	local.Root = chunker.MerkleRoot(local.ChunkHashes)
	remote.Root = chunker.MerkleRoot(remote.ChunkHashes)

	plan := Compute(local, remote)
	if !plan.Truncate {
		t.Error("expected truncate to be signaled")
	}
}
