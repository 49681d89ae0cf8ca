// Package alerts gates, formats, and delivers outbound notifications.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"failwatch/internal/db"
	"failwatch/internal/models"
	"failwatch/internal/notifier"
)

const maxSendAttempts = 3

type outbound struct {
	alertID int64
	kind    string
	text    string
}

// Dispatcher owns the per-kind cooldown clocks and a single delivery worker.
// MaybeSend* and SendInfo must be called from one goroutine (the watcher
// loop); they never block on network I/O. The cooldown clock is stamped on
// every accepted attempt, not on confirmed delivery, so a failing endpoint is
// announced once per cooldown window instead of on every tick.
type Dispatcher struct {
	notify      *notifier.Webhook
	history     *db.Repository
	log         *slog.Logger
	cooldown    time.Duration
	maintenance bool
	sendTimeout time.Duration

	now      func() time.Time
	lastSent map[models.AlertKind]time.Time

	queue chan outbound
	wg    sync.WaitGroup
}

func NewDispatcher(notify *notifier.Webhook, history *db.Repository, logger *slog.Logger, cooldown time.Duration, maintenance bool, queueSize int, sendTimeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		notify:      notify,
		history:     history,
		log:         logger,
		cooldown:    cooldown,
		maintenance: maintenance,
		sendTimeout: sendTimeout,
		now:         time.Now,
		lastSent:    map[models.AlertKind]time.Time{},
		queue:       make(chan outbound, queueSize),
	}
}

// Start launches the delivery worker. The worker runs until Stop so that
// alerts queued right before shutdown still get a delivery attempt.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ob := range d.queue {
			d.deliver(ob)
		}
	}()
}

// Stop closes the queue and waits up to grace for in-flight deliveries to
// drain. Abandoned sends are logged, never retried.
func (d *Dispatcher) Stop(grace time.Duration) {
	close(d.queue)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		d.log.Warn("shutdown grace elapsed, abandoning queued notifications")
	}
}

// MaybeSendFailover announces a pool transition (failover or recovery).
// Maintenance mode suppresses it entirely, cooldown clock untouched: planned
// pool flips are expected noise. Error-rate alerts are not affected by
// maintenance, see MaybeSendErrorRate.
func (d *Dispatcher) MaybeSendFailover(tr models.Transition) {
	if d.maintenance {
		d.log.Info("maintenance mode, transition alert suppressed", "from", tr.From, "to", tr.To)
		return
	}
	if !d.clearCooldown(models.KindFailover) {
		return
	}
	d.enqueue(models.KindFailover, FormatTransition(tr))
}

// MaybeSendErrorRate announces an elevated error rate. Fires even in
// maintenance mode: a planned pool flip does not excuse a broken release.
func (d *Dispatcher) MaybeSendErrorRate(rate float64, errorCount, windowSize int) {
	if !d.clearCooldown(models.KindErrorRate) {
		return
	}
	d.enqueue(models.KindErrorRate, FormatErrorRate(rate, errorCount, windowSize, d.now().UTC()))
}

// SendInfo queues an informational message outside the cooldown kinds.
func (d *Dispatcher) SendInfo(text string) {
	d.enqueue("info", text)
}

// clearCooldown reports whether an alert of this kind may be attempted now,
// and stamps the attempt when it may.
func (d *Dispatcher) clearCooldown(kind models.AlertKind) bool {
	now := d.now()
	if last, ok := d.lastSent[kind]; ok && now.Sub(last) < d.cooldown {
		d.log.Info("alert suppressed by cooldown", "kind", kind, "since_last", now.Sub(last).Round(time.Second))
		return false
	}
	d.lastSent[kind] = now
	return true
}

func (d *Dispatcher) enqueue(kind models.AlertKind, text string) {
	var alertID int64
	if d.history != nil {
		id, err := d.history.InsertAlert(context.Background(), string(kind), text, d.now().UTC())
		if err != nil {
			d.log.Error("record alert history", "err", err)
		} else {
			alertID = id
		}
	}
	select {
	case d.queue <- outbound{alertID: alertID, kind: string(kind), text: text}:
	default:
		// Still counts as attempted for cooldown purposes.
		d.log.Warn("dispatch queue full, dropping alert", "kind", kind)
		d.recordEvent(alertID, "dropped", 0, "dispatch queue full", nil)
	}
}

// deliver runs on the worker goroutine. Detached from the run context so a
// shutdown signal does not kill a send mid-flight; Stop bounds the total wait.
func (d *Dispatcher) deliver(ob outbound) {
	var err error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err = d.notify.Send(ctx, ob.text)
		cancel()
		if err == nil {
			sent := d.now().UTC()
			d.recordEvent(ob.alertID, "sent", attempt, "", &sent)
			return
		}
		time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
	}
	d.recordEvent(ob.alertID, "failed", maxSendAttempts, err.Error(), nil)
	d.log.Warn("notification delivery failed", "kind", ob.kind, "err", err)
}

func (d *Dispatcher) recordEvent(alertID int64, status string, attempts int, lastErr string, sentAt *time.Time) {
	if d.history == nil || alertID == 0 {
		return
	}
	if err := d.history.InsertNotificationEvent(context.Background(), alertID, "webhook", status, attempts, lastErr, sentAt); err != nil {
		d.log.Error("record notification event", "err", err)
	}
}
