package transfer

import "github.com/leafsync/leafsync/internal/summary"

// MirrorDeletes returns the relative paths present in local but absent from
// remote — the files a mirror-enabled session relocates to trash (spec
// §4.C "remote file absent from summary, mirror-delete enabled").
func MirrorDeletes(local, remote *summary.DirectorySummary) []string {
	remoteSet := make(map[string]struct{}, len(remote.Entries))
	for _, e := range remote.Entries {
		remoteSet[e.RelativePath] = struct{}{}
	}

	var extra []string
	for _, e := range local.Entries {
		if _, ok := remoteSet[e.RelativePath]; !ok {
			extra = append(extra, e.RelativePath)
		}
	}
	return extra
}
