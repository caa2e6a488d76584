package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/leafsync/leafsync/daemon/config"
	"github.com/leafsync/leafsync/internal/identity"
	"github.com/leafsync/leafsync/internal/notifier"
	"github.com/leafsync/leafsync/internal/telemetry"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/internal/trust"
	"github.com/leafsync/leafsync/transfer"
)

const (
	exitWatchOK    = 0
	exitWatchUsage = 1
)

func runWatch(ctx context.Context, args []string) int {
	fs := newFlagSet("watch")
	acceptFirst := fs.Bool("accept-first", false, "pin the peer's fingerprint on first contact")
	fingerprint := fs.String("fingerprint", "", "expected peer fingerprint, pinned before dialing")
	file := fs.String("file", "", "scope every cycle to a single relative path")
	mirror := fs.Bool("mirror", false, "delete local files absent from the peer (mirror mode)")
	intervalSec := fs.Int("interval", 5, "seconds between periodic pulls")
	observAddr := fs.String("observ-addr", "127.0.0.1:8082", "address for /metrics and /health (empty disables)")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "watch: usage: leafsync watch <dir> <addr:port> [flags]")
		return exitWatchUsage
	}
	dir := fs.Arg(0)
	addr := fs.Arg(1)

	logger := telemetry.NewPrettyLogger("leafsync", "dev", os.Stdout)
	cfg := config.DefaultConfig()

	trustStore, err := trust.Open(cfg.TrustStorePath)
	if err != nil {
		logger.Error(err, "failed to open trust store")
		return exitWatchUsage
	}
	if *fingerprint != "" {
		if err := trustStore.Pin(addr, *fingerprint); err != nil {
			logger.Error(err, "failed to pin fingerprint")
			return exitWatchUsage
		}
	}

	keystorePath := identity.DefaultKeystorePath()
	if _, err := identity.LoadOrCreate(keystorePath, ""); err != nil {
		logger.Error(err, "failed to load local identity")
		return exitWatchUsage
	}

	n, err := notifier.New(dir, cfg.WatchDebounce)
	if err != nil {
		logger.Error(err, "failed to start change notifier")
		n = nil
	}
	if n != nil {
		defer n.Close()
	}

	dialer := &transport.QUICDialer{TrustStore: trustStore, AcceptFirst: *acceptFirst}

	metrics := telemetry.NewMetrics()
	var activeSessions int64
	health := telemetry.NewHealthChecker(serveVersion, func() int { return int(atomic.LoadInt64(&activeSessions)) })
	go startObservabilityServer(ctx, *observAddr, metrics, health, logger)

	syncFunc := func(cycleCtx context.Context) (*transfer.Summary, error) {
		conn, err := dialer.Dial(cycleCtx, addr)
		if err != nil {
			logger.ConnectionFailed(addr, err)
			return nil, err
		}
		defer conn.Close()

		atomic.AddInt64(&activeSessions, 1)
		defer atomic.AddInt64(&activeSessions, -1)

		_, summary, err := transfer.RunSession(cycleCtx, conn, cfg, dir, *file, *mirror, logger, metrics)
		return summary, err
	}

	if err := transfer.Watch(ctx, time.Duration(*intervalSec)*time.Second, n, logger, syncFunc); err != nil {
		if ctx.Err() != nil {
			return exitWatchOK
		}
		logger.Error(err, "watch loop ended")
		return exitWatchUsage
	}
	return exitWatchOK
}
