// Package pool detects which backend pool is serving traffic and classifies
// changes of it.
package pool

import (
	"time"

	"failwatch/internal/models"
)

// Tracker is the active-pool state machine. The very first entry only seeds
// the state; transitions are reported from the second distinct pool onward.
//
// Classification is by destination relative to the designated primary:
// arriving at the primary is a recovery, leaving it is a failover. That
// matches how operators read it, independent of how often the pools flap.
type Tracker struct {
	primary string
	current string
	lastAt  time.Time

	now func() time.Time
}

func NewTracker(primary string) *Tracker {
	return &Tracker{primary: primary, now: time.Now}
}

// Observe feeds one entry through the state machine. The returned transition
// is valid only when ok is true.
func (t *Tracker) Observe(e models.AccessEntry) (models.Transition, bool) {
	if t.current == "" {
		t.current = e.Pool
		return models.Transition{}, false
	}
	if e.Pool == t.current {
		return models.Transition{}, false
	}

	kind := models.TransitionFailover
	if e.Pool == t.primary {
		kind = models.TransitionRecovery
	}
	tr := models.Transition{
		Kind:         kind,
		From:         t.current,
		To:           e.Pool,
		Release:      e.Release,
		UpstreamAddr: e.UpstreamAddr,
		At:           t.now().UTC(),
	}
	t.current = e.Pool
	t.lastAt = tr.At
	return tr, true
}

// Current returns the pool last seen serving traffic, empty before the first
// entry.
func (t *Tracker) Current() string { return t.current }

// LastTransition returns when the active pool last changed, zero if it never
// has.
func (t *Tracker) LastTransition() time.Time { return t.lastAt }
