package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/leafsync/leafsync/daemon/config"
	"github.com/leafsync/leafsync/internal/chunker"
	"github.com/leafsync/leafsync/internal/ignore"
	"github.com/leafsync/leafsync/internal/ratelimit"
	"github.com/leafsync/leafsync/internal/telemetry"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/transfer"
)

// acceptRate bounds how fast a serve process admits new connections, so a
// misbehaving or many-peer client population can't starve one process of
// file descriptors or goroutines.
const (
	acceptRate  = 20.0
	acceptBurst = 20
)

// exit codes per spec §6: 0 clean shutdown, 2 bind failure, 3 TLS init failure.
const (
	exitServeOK          = 0
	exitServeBindFailure = 2
	exitServeTLSFailure  = 3
)

func runServe(ctx context.Context, args []string) int {
	fs := newFlagSet("serve")
	port := fs.Int("port", 4433, "listen port")
	file := fs.String("file", "", "restrict serving to a single relative path")
	observAddr := fs.String("observ-addr", "127.0.0.1:8081", "address for /metrics and /health (empty disables)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "serve: missing <dir>")
		return exitServeBindFailure
	}
	dir := fs.Arg(0)

	cfg := config.DefaultConfig()
	logger := telemetry.NewPrettyLogger("leafsync", "dev", os.Stdout)

	listener, err := transport.ListenQUIC(fmt.Sprintf(":%d", *port))
	if err != nil {
		logger.Error(err, "failed to start listener")
		if isTLSInitError(err) {
			return exitServeTLSFailure
		}
		return exitServeBindFailure
	}
	defer listener.Close()
	logger.Info(fmt.Sprintf("serving %s on %s", dir, listener.Addr()))

	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
		listener.Close()
	}()

	ignoreList, err := ignore.Load(dir + "/.leafsyncignore")
	if err != nil {
		ignoreList = ignore.Empty()
	}
	cache := chunker.NewCache()

	metrics := telemetry.NewMetrics()
	var activeSessions int64
	health := telemetry.NewHealthChecker(serveVersion, func() int { return int(atomic.LoadInt64(&activeSessions)) })
	go startObservabilityServer(ctx, *observAddr, metrics, health, logger)

	serverCfg := transfer.ServerConfig{
		RootDir:          dir,
		ChunkSize:        uint32(cfg.ChunkSize),
		IgnoreList:       ignoreList,
		ManifestCache:    cache,
		Logger:           logger,
		ForcedScope:      *file,
		Metrics:          metrics,
		HandshakeTimeout: cfg.HandshakeTimeout,
		IdleTimeout:      cfg.IdleTimeout,
	}

	limiter := ratelimit.NewTokenBucket(acceptRate, acceptBurst)

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return exitServeOK
			}
			logger.Error(err, "accept failed")
			continue
		}
		if !limiter.Allow(1) {
			logger.Warn(fmt.Sprintf("rejecting %s: accept rate exceeded", conn.RemoteAddr()))
			conn.Close()
			continue
		}
		logger.ConnectionEstablished(conn.RemoteAddr())
		atomic.AddInt64(&activeSessions, 1)
		go func() {
			defer atomic.AddInt64(&activeSessions, -1)
			handleConn(ctx, conn, serverCfg, logger)
		}()
	}
}

// serveVersion is reported on the health endpoint; LeafSync has no build-time
// version stamping yet, so this is a fixed placeholder.
const serveVersion = "dev"

func handleConn(ctx context.Context, conn transport.Conn, serverCfg transfer.ServerConfig, logger *telemetry.Logger) {
	defer conn.Close()
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		logger.Error(err, "accept stream failed")
		return
	}
	defer stream.Close()

	if err := transfer.ServeConn(stream, serverCfg); err != nil {
		logger.Error(err, "session ended with error")
	}
}

func isTLSInitError(err error) bool {
	return errors.Is(err, transport.ErrTLSInit)
}
