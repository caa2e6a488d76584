// Package ignore loads .leafsyncignore glob patterns and matches them
// against normalized relative paths (spec §6 ignore-list collaborator).
package ignore

import (
	"bufio"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// List holds the compiled set of ignore patterns from one .leafsyncignore
// file.
type List struct {
	patterns []string
}

// Load reads patterns from path. Each non-empty, non-"#"-prefixed line is a
// glob pattern. A missing file yields an empty, always-non-matching List.
func Load(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &List{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &List{patterns: patterns}, nil
}

// Empty returns a List that matches nothing, for sync roots with no
// .leafsyncignore file.
func Empty() *List { return &List{} }

// Match reports whether relativePath (forward-slash, already normalized)
// should be excluded.
func (l *List) Match(relativePath string) bool {
	for _, p := range l.patterns {
		ok, err := doublestar.Match(p, relativePath)
		if err == nil && ok {
			return true
		}
		// also match directory-scoped patterns against path segments
		if ok, err := doublestar.Match("**/"+p, relativePath); err == nil && ok {
			return true
		}
	}
	return false
}
