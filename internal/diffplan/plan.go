// Package diffplan compares a local manifest against a remote manifest and
// produces the minimal request plan (spec §4.C).
package diffplan

import "github.com/leafsync/leafsync/internal/chunker"

// Action classifies whether any chunk fetch is required.
type Action int

const (
	// ActionNone means the file is already up to date; no transfer needed.
	ActionNone Action = iota
	// ActionFetch means indices must be fetched.
	ActionFetch
)

// Plan is the per-file request plan: a file identity plus the sorted,
// deduplicated indices to fetch.
type Plan struct {
	RelativePath string
	RemoteRoot   chunker.Hash
	Indices      []uint32
	Action       Action
	// Truncate signals that, after any fetches succeed, the local file
	// must be truncated to the remote size because the local chunk count
	// exceeds the remote's (spec §4.C).
	Truncate bool
}

// Compute builds the request plan for one file. local may be nil when the
// file is absent locally.
func Compute(local, remote *chunker.FileManifest) Plan {
	plan := Plan{RelativePath: remote.RelativePath, RemoteRoot: remote.Root}

	if local == nil {
		plan.Indices = allIndices(len(remote.ChunkHashes))
		if len(plan.Indices) > 0 {
			plan.Action = ActionFetch
		}
		return plan
	}

	// Tie-break: chunk_size mismatch makes local manifest treated as absent.
	if local.ChunkSize != remote.ChunkSize {
		plan.Indices = allIndices(len(remote.ChunkHashes))
		if len(plan.Indices) > 0 {
			plan.Action = ActionFetch
		}
		return plan
	}

	if local.Root == remote.Root {
		plan.Action = ActionNone
		return plan
	}

	minLen := len(local.ChunkHashes)
	if len(remote.ChunkHashes) < minLen {
		minLen = len(remote.ChunkHashes)
	}

	var indices []uint32
	for i := 0; i < minLen; i++ {
		if local.ChunkHashes[i] != remote.ChunkHashes[i] {
			indices = append(indices, uint32(i))
		}
	}
	for i := minLen; i < len(remote.ChunkHashes); i++ {
		indices = append(indices, uint32(i))
	}

	plan.Indices = indices
	if len(indices) > 0 {
		plan.Action = ActionFetch
	} else {
		plan.Action = ActionNone
	}
	plan.Truncate = len(local.ChunkHashes) > len(remote.ChunkHashes)

	return plan
}

func allIndices(n int) []uint32 {
	if n == 0 {
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i)
	}
	return out
}
