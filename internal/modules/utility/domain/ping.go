package domain

import (
	"fmt"
	"time"
)

// PingResult is the outcome of a ping: the gateway heartbeat latency at the
// time it was answered.
type PingResult struct {
	Latency   time.Duration
	Timestamp time.Time
}

// NewPingResult creates a PingResult. A non-positive latency means no
// heartbeat has been acknowledged yet.
func NewPingResult(latency time.Duration, now time.Time) *PingResult {
	return &PingResult{
		Latency:   latency,
		Timestamp: now,
	}
}

// Message renders the reply text.
func (r *PingResult) Message() string {
	if r.Latency <= 0 {
		return "Pong!"
	}
	return fmt.Sprintf("Pong! `%dms`", r.Latency.Milliseconds())
}
