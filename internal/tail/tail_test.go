package tail

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTailer(t *testing.T, path string) *Tailer {
	t.Helper()
	tl := New(path, 5*time.Millisecond, time.Second, testLogger())
	tl.FromStart = true
	t.Cleanup(func() { _ = tl.Close() })
	return tl
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(line)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestNextDeliversLinesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "alpha\nbeta\n")
	tl := newTestTailer(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	line, err := tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "alpha", line)

	line, err = tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "beta", line)

	appendLine(t, path, "gamma\n")
	line, err = tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "gamma", line)
}

func TestNextWaitsForFileToAppear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.log")
	tl := newTestTailer(t, path)

	go func() {
		time.Sleep(50 * time.Millisecond)
		appendLine(t, path, "finally\n")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "finally", line)
}

func TestDefaultOpenSkipsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "history\n")
	tl := New(path, 5*time.Millisecond, time.Second, testLogger())
	t.Cleanup(func() { _ = tl.Close() })

	go func() {
		time.Sleep(50 * time.Millisecond)
		appendLine(t, path, "live\n")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "live", line)
}

func TestPartialLineCarriedAcrossReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "par")
	tl := newTestTailer(t, path)

	go func() {
		time.Sleep(50 * time.Millisecond)
		appendLine(t, path, "tial\n")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "partial", line)
}

func TestTruncationResumesFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "a-reasonably-long-first-line\n")
	tl := newTestTailer(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "a-reasonably-long-first-line", line)

	require.NoError(t, os.Truncate(path, 0))
	appendLine(t, path, "post-truncate\n")

	line, err = tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "post-truncate", line)
}

func TestRotationReopensReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	appendLine(t, path, "before-rotate\n")
	tl := newTestTailer(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	line, err := tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "before-rotate", line)

	require.NoError(t, os.Rename(path, filepath.Join(dir, "access.log.1")))
	appendLine(t, path, "after-rotate\n")

	line, err = tl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "after-rotate", line)
}

func TestMissingSourceEscalatesAfterGrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.log")
	tl := New(path, 5*time.Millisecond, 30*time.Millisecond, testLogger())
	t.Cleanup(func() { _ = tl.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := tl.Next(ctx)
	require.ErrorIs(t, err, ErrSourceLost)
}

func TestNextHonorsCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	appendLine(t, path, "")
	tl := newTestTailer(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tl.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
