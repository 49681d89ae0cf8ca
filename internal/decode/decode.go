// Package decode turns raw access-log lines into structured entries.
package decode

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"failwatch/internal/models"
)

// Error reports a line that could not be decoded. Callers skip the line and
// keep the stream alive.
type Error struct {
	Reason string
	Line   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode: %s: %q", e.Reason, e.Line)
}

// wireEntry is the on-disk JSON shape. Required fields are pointers so a
// missing key is distinguishable from a zero value.
type wireEntry struct {
	Timestamp            *string `json:"timestamp"`
	RemoteAddr           string  `json:"remote_addr"`
	Request              string  `json:"request"`
	Status               *int    `json:"status"`
	Pool                 *string `json:"pool"`
	Release              string  `json:"release"`
	UpstreamAddr         string  `json:"upstream_addr"`
	UpstreamStatus       string  `json:"upstream_status"`
	UpstreamResponseTime string  `json:"upstream_response_time"`
	RequestTime          float64 `json:"request_time"`
	BytesSent            int64   `json:"bytes_sent"`
}

// Decoder validates pool labels against the set the proxy is configured to
// emit. An unknown label is a decode failure, not a crash: a proxy upgrade
// that adds a pool must not take the watcher down.
type Decoder struct {
	pools map[string]bool
}

func New(pools ...string) *Decoder {
	m := make(map[string]bool, len(pools))
	for _, p := range pools {
		m[p] = true
	}
	return &Decoder{pools: m}
}

// Decode parses one raw line. Any structural, type, or domain violation
// returns an *Error; the entry is only valid when err is nil.
func (d *Decoder) Decode(line string) (models.AccessEntry, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return models.AccessEntry{}, &Error{Reason: "empty line"}
	}

	var w wireEntry
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return models.AccessEntry{}, &Error{Reason: err.Error(), Line: clip(raw)}
	}
	if w.Status == nil {
		return models.AccessEntry{}, &Error{Reason: "missing status", Line: clip(raw)}
	}
	if w.Timestamp == nil {
		return models.AccessEntry{}, &Error{Reason: "missing timestamp", Line: clip(raw)}
	}
	if w.Pool == nil {
		return models.AccessEntry{}, &Error{Reason: "missing pool", Line: clip(raw)}
	}
	pool := strings.TrimSpace(*w.Pool)
	if !d.pools[pool] {
		return models.AccessEntry{}, &Error{Reason: fmt.Sprintf("unknown pool %q", pool), Line: clip(raw)}
	}
	ts, err := parseTimestamp(*w.Timestamp)
	if err != nil {
		return models.AccessEntry{}, &Error{Reason: fmt.Sprintf("bad timestamp: %v", err), Line: clip(raw)}
	}

	return models.AccessEntry{
		Timestamp:            ts,
		RemoteAddr:           w.RemoteAddr,
		Request:              w.Request,
		Status:               *w.Status,
		Pool:                 pool,
		Release:              w.Release,
		UpstreamAddr:         w.UpstreamAddr,
		UpstreamStatus:       w.UpstreamStatus,
		UpstreamResponseTime: w.UpstreamResponseTime,
		RequestTime:          w.RequestTime,
		BytesSent:            w.BytesSent,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	// nginx's $time_iso8601 carries an offset; some emitters drop it.
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func clip(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
