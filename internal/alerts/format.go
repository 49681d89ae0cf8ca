package alerts

import (
	"fmt"
	"time"

	"failwatch/internal/models"
)

// Message construction is a pure function of the alert state so it can be
// pinned in tests without a transport.

func FormatTransition(tr models.Transition) string {
	ts := tr.At.Format("2006-01-02 15:04:05 MST")
	if tr.Kind == models.TransitionRecovery {
		return fmt.Sprintf(
			"RECOVERY: primary pool restored\nprevious=%s current=%s release=%s upstream=%s\ntime=%s",
			tr.From, tr.To, tr.Release, tr.UpstreamAddr, ts)
	}
	return fmt.Sprintf(
		"FAILOVER: traffic switched away from primary\nprevious=%s current=%s release=%s upstream=%s\ntime=%s",
		tr.From, tr.To, tr.Release, tr.UpstreamAddr, ts)
}

func FormatErrorRate(rate float64, errorCount, windowSize int, at time.Time) string {
	return fmt.Sprintf(
		"HIGH ERROR RATE: %.2f%%\nerrors=%d window=%d\ntime=%s",
		rate, errorCount, windowSize, at.Format("2006-01-02 15:04:05 MST"))
}

func FormatStartup(logPath string, windowSize int, thresholdPct float64, cooldown time.Duration, primary, backup string) string {
	return fmt.Sprintf(
		"failwatch started\nmonitoring=%s window=%d threshold=%.2f%% cooldown=%s primary=%s backup=%s",
		logPath, windowSize, thresholdPct, cooldown, primary, backup)
}
