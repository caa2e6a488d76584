// Package transfer drives a sync session end-to-end: summary exchange,
// per-file manifest/diff/fetch/verify/finalize, resume, and mirror-delete
// (spec §4.E).
package transfer

import "github.com/leafsync/leafsync/internal/syncerr"

// FileOutcome is the terminal disposition of one file within a session.
type FileOutcome string

const (
	OutcomeOK       FileOutcome = "ok"
	OutcomeUpToDate FileOutcome = "up_to_date"
	OutcomeSkipped  FileOutcome = "skipped"
	OutcomeFailed   FileOutcome = "failed"
	OutcomeTrashed  FileOutcome = "trashed"
)

// FileResult is one file's recorded result for the session summary.
type FileResult struct {
	RelativePath string
	Outcome      FileOutcome
	FailureKind  syncerr.Kind
	BytesApplied int64
}

// Summary is the session-end report (spec §7: "counts of ok, up_to_date,
// skipped, failed(kind)").
type Summary struct {
	Files []FileResult
}

// Add appends one file's result to the summary.
func (s *Summary) Add(r FileResult) { s.Files = append(s.Files, r) }

// Counts tallies outcomes by kind, matching the spec §7 session-end report.
func (s *Summary) Counts() (ok, upToDate, skipped, trashed int, failed map[syncerr.Kind]int) {
	failed = make(map[syncerr.Kind]int)
	for _, f := range s.Files {
		switch f.Outcome {
		case OutcomeOK:
			ok++
		case OutcomeUpToDate:
			upToDate++
		case OutcomeSkipped:
			skipped++
		case OutcomeTrashed:
			trashed++
		case OutcomeFailed:
			failed[f.FailureKind]++
		}
	}
	return
}
