// Package window keeps a rolling sample of recent request outcomes.
package window

// ErrorClass is the lowest status treated as an error outcome.
const ErrorClass = 500

// Window is a fixed-capacity ring of the last N observed statuses with a
// running error tally, so the rate never needs a rescan.
type Window struct {
	statuses []int
	head     int
	size     int
	tally    int
}

func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{statuses: make([]int, capacity)}
}

// Record inserts one outcome, evicting the oldest entry when full.
func (w *Window) Record(status int) {
	if w.size == len(w.statuses) {
		if isError(w.statuses[w.head]) {
			w.tally--
		}
		w.statuses[w.head] = status
		w.head = (w.head + 1) % len(w.statuses)
	} else {
		w.statuses[(w.head+w.size)%len(w.statuses)] = status
		w.size++
	}
	if isError(status) {
		w.tally++
	}
}

// ErrorRate returns the error percentage over however many entries exist so
// far. Computing over a partially-filled window is deliberate: it buys early
// detection at the cost of higher variance right after startup.
func (w *Window) ErrorRate() float64 {
	if w.size == 0 {
		return 0
	}
	return float64(w.tally) / float64(w.size) * 100
}

// Len is the current occupancy, at most the capacity.
func (w *Window) Len() int { return w.size }

// Errors is the running error tally.
func (w *Window) Errors() int { return w.tally }

// Cap is the configured capacity.
func (w *Window) Cap() int { return len(w.statuses) }

func isError(status int) bool {
	return status >= ErrorClass && status < 600
}
