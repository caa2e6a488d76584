package transfer

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leafsync/leafsync/daemon/config"
	"github.com/leafsync/leafsync/internal/chunker"
	"github.com/leafsync/leafsync/internal/ignore"
	"github.com/leafsync/leafsync/internal/telemetry"
)

// pipeStream adapts one half of net.Pipe() to transport.Stream.
type pipeStream struct {
	net.Conn
}

func (p pipeStream) Close() error { return p.Conn.Close() }

func newPipeStreams() (pipeStream, pipeStream) {
	a, b := net.Pipe()
	return pipeStream{a}, pipeStream{b}
}

func testLogger() *telemetry.Logger {
	return telemetry.NewPrettyLogger("leafsync-test", "dev", os.Stderr)
}

func writeFile(t *testing.T, dir, relPath string, data []byte) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, data, 0o644))
}

func runServerSide(t *testing.T, serverStream pipeStream, rootDir string) <-chan error {
	done := make(chan error, 1)
	go func() {
		cfg := ServerConfig{
			RootDir:       rootDir,
			ChunkSize:     1024,
			IgnoreList:    ignore.Empty(),
			ManifestCache: chunker.NewCache(),
			Logger:        testLogger(),
		}
		done <- ServeConn(serverStream, cfg)
	}()
	return done
}

func TestEngineRun_FullFileMissingLocally(t *testing.T) {
	remoteDir := t.TempDir()
	localDir := t.TempDir()

	writeFile(t, remoteDir, "a.txt", []byte("hello world, this is chunk data"))

	clientStream, serverStream := newPipeStreams()
	serverDone := runServerSide(t, serverStream, remoteDir)

	cfg := config.DefaultConfig()
	cfg.ChunkSize = 1024
	cfg.MaxConcurrentFiles = 2

	engine := NewEngine(localDir, cfg, false, testLogger(), nil)
	summary, err := engine.Run(context.Background(), clientStream, "")
	require.NoError(t, err)

	clientStream.Close()
	<-serverDone

	ok, upToDate, skipped, trashed, failed := summary.Counts()
	require.Equal(t, 1, ok)
	require.Equal(t, 0, upToDate)
	require.Equal(t, 0, skipped)
	require.Equal(t, 0, trashed)
	require.Empty(t, failed)

	got, err := os.ReadFile(filepath.Join(localDir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world, this is chunk data", string(got))
}

func TestEngineRun_UpToDate(t *testing.T) {
	remoteDir := t.TempDir()
	localDir := t.TempDir()

	content := []byte("identical content on both sides")
	writeFile(t, remoteDir, "same.txt", content)
	writeFile(t, localDir, "same.txt", content)

	clientStream, serverStream := newPipeStreams()
	serverDone := runServerSide(t, serverStream, remoteDir)

	cfg := config.DefaultConfig()
	cfg.ChunkSize = 1024

	engine := NewEngine(localDir, cfg, false, testLogger(), nil)
	summary, err := engine.Run(context.Background(), clientStream, "")
	require.NoError(t, err)

	clientStream.Close()
	<-serverDone

	ok, upToDate, _, _, failed := summary.Counts()
	require.Equal(t, 0, ok)
	require.Equal(t, 1, upToDate)
	require.Empty(t, failed)
}

func TestEngineRun_PartialUpdateSeedsUnchangedChunks(t *testing.T) {
	remoteDir := t.TempDir()
	localDir := t.TempDir()

	chunkSize := 8
	// Three chunks: first and third identical on both sides, middle differs.
	local := []byte("AAAAAAAA" + "BBBBBBBB" + "CCCCCCCC")
	remote := []byte("AAAAAAAA" + "ZZZZZZZZ" + "CCCCCCCC")
	writeFile(t, localDir, "p.txt", local)
	writeFile(t, remoteDir, "p.txt", remote)

	clientStream, serverStream := newPipeStreams()

	done := make(chan error, 1)
	go func() {
		cfg := ServerConfig{
			RootDir:       remoteDir,
			ChunkSize:     uint32(chunkSize),
			IgnoreList:    ignore.Empty(),
			ManifestCache: chunker.NewCache(),
			Logger:        testLogger(),
		}
		done <- ServeConn(serverStream, cfg)
	}()

	cfg := config.DefaultConfig()
	cfg.ChunkSize = int64(chunkSize)

	engine := NewEngine(localDir, cfg, false, testLogger(), nil)
	summary, err := engine.Run(context.Background(), clientStream, "")
	require.NoError(t, err)

	clientStream.Close()
	<-done

	ok, _, _, _, failed := summary.Counts()
	require.Equal(t, 1, ok)
	require.Empty(t, failed)

	got, err := os.ReadFile(filepath.Join(localDir, "p.txt"))
	require.NoError(t, err)
	require.Equal(t, remote, got)
}

func TestEngineRun_MirrorDeletesAbsentRemoteFiles(t *testing.T) {
	remoteDir := t.TempDir()
	localDir := t.TempDir()

	writeFile(t, localDir, "gone.txt", []byte("will be trashed"))

	clientStream, serverStream := newPipeStreams()
	serverDone := runServerSide(t, serverStream, remoteDir)

	cfg := config.DefaultConfig()
	cfg.ChunkSize = 1024
	engine := NewEngine(localDir, cfg, true, testLogger(), nil)
	summary, err := engine.Run(context.Background(), clientStream, "")
	require.NoError(t, err)

	clientStream.Close()
	<-serverDone

	_, _, _, trashed, _ := summary.Counts()
	require.Equal(t, 1, trashed)

	_, statErr := os.Stat(filepath.Join(localDir, "gone.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestEngineRun_ConcurrentAcceptAndFetch(t *testing.T) {
	remoteDir := t.TempDir()
	localDir := t.TempDir()
	writeFile(t, remoteDir, "x.bin", make([]byte, 4096))

	clientStream, serverStream := newPipeStreams()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cfg := ServerConfig{
			RootDir:       remoteDir,
			ChunkSize:     1024,
			IgnoreList:    ignore.Empty(),
			ManifestCache: chunker.NewCache(),
			Logger:        testLogger(),
		}
		_ = ServeConn(serverStream, cfg)
	}()

	cfg := config.DefaultConfig()
	cfg.ChunkSize = 1024
	engine := NewEngine(localDir, cfg, false, testLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary, err := engine.Run(ctx, clientStream, "")
	require.NoError(t, err)
	clientStream.Close()
	wg.Wait()

	ok, _, _, _, failed := summary.Counts()
	require.Equal(t, 1, ok)
	require.Empty(t, failed)
}
