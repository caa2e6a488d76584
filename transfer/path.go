package transfer

import (
	"errors"
	"path/filepath"

	"github.com/leafsync/leafsync/internal/summary"
)

var errBadPath = errors.New("path escapes serving root")

// resolveScopedPath normalizes relativePath and joins it under rootDir,
// rejecting anything that would escape the serving root (spec §9
// "Single-file mode": "The server MUST still reject paths that escape the
// serving root").
func resolveScopedPath(rootDir, relativePath string) (string, bool) {
	normalized, err := summary.Normalize(relativePath)
	if err != nil {
		return "", false
	}
	return filepath.Join(rootDir, filepath.FromSlash(normalized)), true
}
