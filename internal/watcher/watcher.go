// Package watcher drives the pipeline: tail, decode, account, alert.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"failwatch/internal/alerts"
	"failwatch/internal/config"
	"failwatch/internal/decode"
	"failwatch/internal/pool"
	"failwatch/internal/window"
)

// LineSource is the pull-based feed of raw log lines. Next blocks until a
// line is available; it returns the context's error on shutdown and a fatal
// error when the source is gone past recovery.
type LineSource interface {
	Next(ctx context.Context) (string, error)
}

// Snapshot is a point-in-time view of the watcher's state for the status API.
type Snapshot struct {
	Processed      int64     `json:"processed"`
	DecodeFailures int64     `json:"decode_failures"`
	CurrentPool    string    `json:"current_pool"`
	LastTransition time.Time `json:"last_transition"`
	WindowLen      int       `json:"window_len"`
	WindowCap      int       `json:"window_cap"`
	WindowErrors   int       `json:"window_errors"`
	ErrorRate      float64   `json:"error_rate"`
	StartedAt      time.Time `json:"started_at"`
}

// Watcher processes entries strictly in arrival order. Ordering is
// load-bearing: transition detection and window accounting both assume it,
// so ingestion is never parallelized. Only the mutex-guarded snapshot is
// shared with other goroutines.
type Watcher struct {
	cfg      config.Config
	log      *slog.Logger
	source   LineSource
	dec      *decode.Decoder
	dispatch *alerts.Dispatcher

	mu             sync.Mutex
	win            *window.Window
	tracker        *pool.Tracker
	processed      int64
	decodeFailures int64
	startedAt      time.Time
}

func New(cfg config.Config, source LineSource, dispatch *alerts.Dispatcher, logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:      cfg,
		log:      logger,
		source:   source,
		dec:      decode.New(cfg.PrimaryPool, cfg.BackupPool),
		dispatch: dispatch,
		win:      window.New(cfg.WindowSize),
		tracker:  pool.NewTracker(cfg.PrimaryPool),
	}
}

// Run processes lines until ctx is canceled (returns nil) or the source
// fails past recovery (returns the cause).
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.startedAt = time.Now().UTC()
	w.mu.Unlock()

	w.log.Info("watcher starting",
		"log", w.cfg.LogPath,
		"window", w.cfg.WindowSize,
		"threshold_pct", w.cfg.ThresholdPct,
		"cooldown", w.cfg.Cooldown,
		"maintenance", w.cfg.Maintenance,
		"primary", w.cfg.PrimaryPool,
		"backup", w.cfg.BackupPool,
	)
	w.dispatch.SendInfo(alerts.FormatStartup(
		w.cfg.LogPath, w.cfg.WindowSize, w.cfg.ThresholdPct, w.cfg.Cooldown,
		w.cfg.PrimaryPool, w.cfg.BackupPool))

	for {
		line, err := w.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.log.Info("watcher stopping", "processed", w.Snapshot().Processed)
				return nil
			}
			return err
		}
		w.process(line)
	}
}

func (w *Watcher) process(line string) {
	entry, err := w.dec.Decode(line)
	if err != nil {
		w.mu.Lock()
		w.decodeFailures++
		w.mu.Unlock()
		w.log.Warn("skipping undecodable line", "err", err)
		return
	}

	w.mu.Lock()
	w.processed++
	processed := w.processed
	w.win.Record(entry.EffectiveStatus())
	tr, changed := w.tracker.Observe(entry)
	rate := w.win.ErrorRate()
	errCount := w.win.Errors()
	winLen := w.win.Len()
	w.mu.Unlock()

	if changed {
		w.log.Info("pool transition", "kind", tr.Kind, "from", tr.From, "to", tr.To, "release", tr.Release)
		w.dispatch.MaybeSendFailover(tr)
	}
	if rate > w.cfg.ThresholdPct {
		w.dispatch.MaybeSendErrorRate(rate, errCount, winLen)
	}
	if processed%1000 == 0 {
		w.log.Debug("progress", "lines", processed, "error_rate", rate)
	}
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Processed:      w.processed,
		DecodeFailures: w.decodeFailures,
		CurrentPool:    w.tracker.Current(),
		LastTransition: w.tracker.LastTransition(),
		WindowLen:      w.win.Len(),
		WindowCap:      w.win.Cap(),
		WindowErrors:   w.win.Errors(),
		ErrorRate:      w.win.ErrorRate(),
		StartedAt:      w.startedAt,
	}
}
