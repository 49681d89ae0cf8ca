package models

import (
	"strconv"
	"strings"
	"time"
)

// AccessEntry is one decoded access-log record from the proxy.
type AccessEntry struct {
	Timestamp            time.Time
	RemoteAddr           string
	Request              string
	Status               int
	Pool                 string
	Release              string
	UpstreamAddr         string
	UpstreamStatus       string
	UpstreamResponseTime string
	RequestTime          float64
	BytesSent            int64
}

// EffectiveStatus returns the entry's status for error accounting. A record
// whose final status is non-5xx but whose upstream answered 5xx counts as the
// worst upstream status. upstream_status can be a comma-separated list when
// the proxy retried against several upstreams.
func (e AccessEntry) EffectiveStatus() int {
	worst := e.Status
	for _, part := range strings.Split(e.UpstreamStatus, ",") {
		s, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if s >= 500 && s < 600 && s > worst {
			worst = s
		}
	}
	return worst
}

// AlertKind is the dedup/cooldown category of an outbound notification.
type AlertKind string

const (
	KindFailover  AlertKind = "failover"
	KindErrorRate AlertKind = "error_rate"
)

// TransitionKind classifies a pool change relative to the designated primary.
type TransitionKind string

const (
	TransitionFailover TransitionKind = "FAILOVER"
	TransitionRecovery TransitionKind = "RECOVERY"
)

// Transition is one observed change of the active pool.
type Transition struct {
	Kind         TransitionKind
	From         string
	To           string
	Release      string
	UpstreamAddr string
	At           time.Time
}

// AlertRecord is one emitted alert as stored in the optional history DB.
type AlertRecord struct {
	ID        int64
	Kind      string
	Summary   string
	CreatedAt time.Time
}
