package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/leafsync/leafsync/internal/notifier"
	"github.com/leafsync/leafsync/internal/telemetry"
)

// WatchInterval is the periodic-pull tick used when none is configured.
const WatchInterval = 5 * time.Second

// SyncFunc performs one full sync cycle and reports its summary.
type SyncFunc func(ctx context.Context) (*Summary, error)

// Watch interleaves periodic client-role pulls with pulls triggered early by
// local change events (spec §6 "Change notifier collaborator", §9 "Open
// questions" — bidirectional convergence over the pull-only wire protocol is
// achieved by each peer running watch independently; a local change
// shortens this side's wait for its next pull rather than pushing bytes
// out-of-protocol. See DESIGN.md for the last-writer-wins tie-break this
// implies).
func Watch(ctx context.Context, interval time.Duration, n *notifier.Notifier, logger *telemetry.Logger, sync SyncFunc) error {
	if interval <= 0 {
		interval = WatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce := func(trigger string) {
		logger.Info("watch cycle triggered: " + trigger)
		summary, err := sync(ctx)
		if err != nil {
			logger.Error(err, "watch cycle failed")
			return
		}
		logger.Info(formatCycleSummary(summary))
	}

	runOnce("initial")

	var events <-chan notifier.Event
	if n != nil {
		events = n.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce("periodic tick")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			runOnce("change: " + ev.RelativePath)
		}
	}
}

func formatCycleSummary(s *Summary) string {
	ok, upToDate, skipped, trashed, failed := s.Counts()
	total := 0
	for _, n := range failed {
		total += n
	}
	return fmt.Sprintf("ok=%d up_to_date=%d skipped=%d trashed=%d failed=%d", ok, upToDate, skipped, trashed, total)
}
