package main

import (
	"context"
	"fmt"
	"os"

	"github.com/leafsync/leafsync/daemon/config"
	"github.com/leafsync/leafsync/internal/identity"
	"github.com/leafsync/leafsync/internal/syncerr"
	"github.com/leafsync/leafsync/internal/telemetry"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/internal/trust"
	"github.com/leafsync/leafsync/transfer"
)

// exit codes per spec §6: 0 ok, 4 trust failure, 5 integrity failure,
// 6 transport/other failure.
const (
	exitConnectOK        = 0
	exitConnectUsage     = 1
	exitConnectTrust     = 4
	exitConnectIntegrity = 5
	exitConnectTransport = 6
)

func runConnect(ctx context.Context, args []string) int {
	fs := newFlagSet("connect")
	acceptFirst := fs.Bool("accept-first", false, "pin the peer's fingerprint on first contact")
	fingerprint := fs.String("fingerprint", "", "expected peer fingerprint, pinned before dialing")
	file := fs.String("file", "", "scope the session to a single relative path")
	mirror := fs.Bool("mirror", false, "delete local files absent from the peer (mirror mode)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "connect: usage: leafsync connect <addr:port> <dir> [flags]")
		return exitConnectUsage
	}
	addr := fs.Arg(0)
	dir := fs.Arg(1)

	logger := telemetry.NewPrettyLogger("leafsync", "dev", os.Stdout)
	cfg := config.DefaultConfig()

	code := doConnect(ctx, addr, dir, *file, *mirror, *acceptFirst, *fingerprint, cfg, logger)
	return code
}

func doConnect(ctx context.Context, addr, dir, scopeFile string, mirror, acceptFirst bool, fingerprint string, cfg *config.Config, logger *telemetry.Logger) int {
	trustStore, err := trust.Open(cfg.TrustStorePath)
	if err != nil {
		logger.Error(err, "failed to open trust store")
		return exitConnectTransport
	}

	if fingerprint != "" {
		if err := trustStore.Pin(addr, fingerprint); err != nil {
			logger.Error(err, "failed to pin fingerprint")
			return exitConnectTransport
		}
	}

	keystorePath := identity.DefaultKeystorePath()
	if _, err := identity.LoadOrCreate(keystorePath, ""); err != nil {
		logger.Error(err, "failed to load local identity")
		return exitConnectTransport
	}

	dialer := &transport.QUICDialer{TrustStore: trustStore, AcceptFirst: acceptFirst}
	conn, err := dialer.Dial(ctx, addr)
	if err != nil {
		logger.ConnectionFailed(addr, err)
		return exitCodeForError(err)
	}
	defer conn.Close()

	sessionID, summary, err := transfer.RunSession(ctx, conn, cfg, dir, scopeFile, mirror, logger, nil)
	if err != nil {
		logger.Error(err, "sync session failed")
		return exitCodeForError(err)
	}

	printSummary(sessionID, summary)
	if summary != nil {
		for _, f := range summary.Files {
			if f.Outcome == transfer.OutcomeFailed && f.FailureKind == syncerr.KindIntegrity {
				return exitConnectIntegrity
			}
		}
	}
	return exitConnectOK
}

func exitCodeForError(err error) int {
	switch syncerr.KindOf(err) {
	case syncerr.KindTrust:
		return exitConnectTrust
	case syncerr.KindIntegrity:
		return exitConnectIntegrity
	default:
		return exitConnectTransport
	}
}

func printSummary(sessionID string, s *transfer.Summary) {
	if s == nil {
		return
	}
	for _, f := range s.Files {
		if f.Outcome == transfer.OutcomeFailed {
			fmt.Printf("%s: %s (%s)\n", f.RelativePath, f.Outcome, f.FailureKind)
		} else {
			fmt.Printf("%s: %s\n", f.RelativePath, f.Outcome)
		}
	}
	ok, upToDate, skipped, trashed, failed := s.Counts()
	total := 0
	for _, n := range failed {
		total += n
	}
	fmt.Printf("session %s: ok=%d up_to_date=%d skipped=%d trashed=%d failed=%d\n", sessionID, ok, upToDate, skipped, trashed, total)
}
