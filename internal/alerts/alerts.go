// Package alerts tracks per-stage failure rates and raises advisory,
// never-fatal warnings when a source looks unhealthy (recap scraping being
// blocked, the model endpoint rate-limiting a whole run).
package alerts

import (
	"fmt"
	"time"

	"courtside/internal/logger"
)

// Level is the severity of a raised alert.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert is one triggered advisory.
type Alert struct {
	Level       Level     `json:"level"`
	Source      string    `json:"source"`
	Message     string    `json:"message"`
	FailureRate float64   `json:"failure_rate"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// FailureTracker counts attempted vs failed operations for one source.
type FailureTracker struct {
	source    string
	threshold float64
	total     int
	failed    int
}

// NewFailureTracker creates a tracker that alerts at or above threshold
// (a ratio in [0,1]; zero disables alerting).
func NewFailureTracker(source string, threshold float64) *FailureTracker {
	return &FailureTracker{source: source, threshold: threshold}
}

// Record counts one attempted operation.
func (t *FailureTracker) Record(failed bool) {
	t.total++
	if failed {
		t.failed++
	}
}

// RecordBatch counts a stage that tallies totals itself.
func (t *FailureTracker) RecordBatch(total, failed int) {
	t.total += total
	t.failed += failed
}

// Rate returns failed/total, zero when nothing was attempted.
func (t *FailureTracker) Rate() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.failed) / float64(t.total)
}

// Evaluate returns a warning alert when the failure rate meets the
// threshold. It never fails the stage; callers log and continue.
func (t *FailureTracker) Evaluate() (Alert, bool) {
	rate := t.Rate()
	if t.threshold <= 0 || t.total == 0 || rate < t.threshold {
		return Alert{}, false
	}
	return Alert{
		Level:       LevelWarning,
		Source:      t.source,
		Message:     fmt.Sprintf("high failure rate for %s: %.0f%% (%d/%d)", t.source, rate*100, t.failed, t.total),
		FailureRate: rate,
		TriggeredAt: time.Now().UTC(),
	}, true
}

// WarnIfExceeded evaluates the tracker and logs the advisory warning.
func (t *FailureTracker) WarnIfExceeded() {
	if alert, ok := t.Evaluate(); ok {
		logger.Warn(alert.Message,
			"level", alert.Level.String(),
			"source", alert.Source,
			"failure_rate", fmt.Sprintf("%.2f", alert.FailureRate),
		)
	}
}
