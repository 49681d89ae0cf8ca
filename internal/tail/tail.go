// Package tail follows an append-only log file the way tail -F does:
// it waits for the file to appear, polls through EOF, and reopens after
// rotation or truncation.
package tail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// ErrSourceLost means the log source stayed unreadable past the configured
// grace period. It is the only non-context error Next returns, and it is
// fatal for the process.
var ErrSourceLost = errors.New("log source lost")

type Tailer struct {
	path  string
	poll  time.Duration
	grace time.Duration
	log   *slog.Logger

	// FromStart makes the first open read existing content instead of
	// seeking to the end. Reopens after rotation always read from the start.
	FromStart bool

	file    *os.File
	reader  *bufio.Reader
	offset  int64
	partial []byte
	opened  bool

	badSince time.Time
}

func New(path string, poll, grace time.Duration, logger *slog.Logger) *Tailer {
	return &Tailer{path: path, poll: poll, grace: grace, log: logger}
}

// Next blocks until one complete line has been appended, returning it without
// the trailing newline. Lines come back in append order; the only permissible
// gap is whatever was written between the last read of a rotated-away file
// and the reopen of its replacement.
func (t *Tailer) Next(ctx context.Context) (string, error) {
	for {
		if t.file == nil {
			if err := t.open(ctx); err != nil {
				return "", err
			}
		}
		line, complete, err := t.readLine()
		if complete {
			t.healthy()
			return line, nil
		}
		if err != nil && err != io.EOF {
			t.log.Warn("read failed", "path", t.path, "err", err)
			t.closeFile()
			if err := t.unhealthy(err); err != nil {
				return "", err
			}
			if err := t.sleep(ctx); err != nil {
				return "", err
			}
			continue
		}
		// EOF with no complete line: steady state, or the file was rotated
		// or truncated underneath us.
		rotated, rerr := t.checkRotation()
		if rerr != nil {
			t.closeFile()
			if err := t.unhealthy(rerr); err != nil {
				return "", err
			}
		} else if !rotated {
			t.healthy()
		}
		if rotated {
			continue
		}
		if err := t.sleep(ctx); err != nil {
			return "", err
		}
	}
}

func (t *Tailer) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// readLine consumes buffered bytes up to the next newline, carrying partial
// tails across calls so a line written in two chunks still comes out whole.
func (t *Tailer) readLine() (string, bool, error) {
	chunk, err := t.reader.ReadBytes('\n')
	t.offset += int64(len(chunk))
	if len(chunk) > 0 && chunk[len(chunk)-1] == '\n' {
		line := append(t.partial, chunk[:len(chunk)-1]...)
		t.partial = nil
		return string(line), true, nil
	}
	if len(chunk) > 0 {
		t.partial = append(t.partial, chunk...)
	}
	return "", false, err
}

func (t *Tailer) open(ctx context.Context) error {
	for {
		f, err := os.Open(t.path)
		if err == nil {
			t.file = f
			t.reader = bufio.NewReader(f)
			t.offset = 0
			t.partial = nil
			if !t.opened && !t.FromStart {
				if pos, serr := f.Seek(0, io.SeekEnd); serr == nil {
					t.offset = pos
				}
			}
			if !t.opened {
				t.log.Info("log source opened", "path", t.path)
			} else {
				t.log.Info("log source reopened", "path", t.path)
			}
			t.opened = true
			t.healthy()
			return nil
		}
		if !os.IsNotExist(err) {
			t.log.Warn("open failed", "path", t.path, "err", err)
		}
		if uerr := t.unhealthy(err); uerr != nil {
			return uerr
		}
		if serr := t.sleep(ctx); serr != nil {
			return serr
		}
	}
}

// checkRotation compares the path's current identity and size against the
// open handle. A replaced file or a size below our read offset both force a
// reopen from the start of the new content.
func (t *Tailer) checkRotation() (bool, error) {
	cur, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.log.Info("log source rotated away", "path", t.path)
			t.closeFile()
			return true, nil
		}
		return false, err
	}
	held, err := t.file.Stat()
	if err != nil {
		return false, err
	}
	if !os.SameFile(cur, held) {
		t.log.Info("log source replaced", "path", t.path)
		t.closeFile()
		return true, nil
	}
	if cur.Size() < t.offset {
		t.log.Info("log source truncated", "path", t.path, "size", cur.Size(), "offset", t.offset)
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
		t.reader.Reset(t.file)
		t.offset = 0
		t.partial = nil
		return true, nil
	}
	return false, nil
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
	t.reader = nil
	t.partial = nil
	t.offset = 0
}

func (t *Tailer) healthy() {
	t.badSince = time.Time{}
}

// unhealthy tracks how long the source has been continuously unreadable and
// escalates past the grace period.
func (t *Tailer) unhealthy(cause error) error {
	now := time.Now()
	if t.badSince.IsZero() {
		t.badSince = now
		return nil
	}
	if now.Sub(t.badSince) > t.grace {
		return fmt.Errorf("%w: %s unreadable for %s: %v", ErrSourceLost, t.path, now.Sub(t.badSince).Round(time.Second), cause)
	}
	return nil
}

func (t *Tailer) sleep(ctx context.Context) error {
	timer := time.NewTimer(t.poll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
