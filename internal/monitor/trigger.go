// internal/monitor/trigger.go
package monitor

import "time"

// Trigger decides when an evaluation cycle should run.
type Trigger interface {
	// ShouldFire reports whether a cycle runs at now. A true result records
	// now as the last firing.
	ShouldFire(now time.Time) bool
	// TimeUntilNextMs is the display-only time until the next firing.
	TimeUntilNextMs(now time.Time) uint64
}

// IntervalTrigger fires on its first call and then whenever at least
// Interval has elapsed since the last firing.
type IntervalTrigger struct {
	interval  time.Duration
	lastFired time.Time
	hasFired  bool
}

// NewIntervalTrigger returns a trigger with the given period.
func NewIntervalTrigger(interval time.Duration) *IntervalTrigger {
	return &IntervalTrigger{interval: interval}
}

// Interval returns the configured period.
func (t *IntervalTrigger) Interval() time.Duration { return t.interval }

func (t *IntervalTrigger) ShouldFire(now time.Time) bool {
	if !t.hasFired || now.Sub(t.lastFired) >= t.interval {
		t.lastFired = now
		t.hasFired = true
		return true
	}
	return false
}

func (t *IntervalTrigger) TimeUntilNextMs(now time.Time) uint64 {
	if !t.hasFired {
		return 0
	}
	elapsed := now.Sub(t.lastFired)
	if elapsed >= t.interval {
		return 0
	}
	return uint64((t.interval - elapsed).Milliseconds())
}
