// internal/monitor/condition.go
package monitor

import (
	"time"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

// Condition decides whether the watched screen state matches a configured
// change or stability pattern.
type Condition interface {
	Evaluate(now time.Time, regions []schemas.Region, capture schemas.ScreenCapture) bool
}

// RegionCondition is a debounced change detector over region hashes. With
// ExpectChange false it is met after ConsecutiveChecks polls in a row saw no
// change; with ExpectChange true, after that many polls in a row saw change.
type RegionCondition struct {
	consecutiveChecks int
	expectChange      bool
	downscale         int

	lastHashes  map[string]uint64
	count       int
	tracked     bool
	initialized bool
}

// NewRegionCondition builds a condition. consecutiveChecks is clamped to at
// least one.
func NewRegionCondition(consecutiveChecks int, expectChange bool) *RegionCondition {
	if consecutiveChecks < 1 {
		consecutiveChecks = 1
	}
	return &RegionCondition{
		consecutiveChecks: consecutiveChecks,
		expectChange:      expectChange,
		downscale:         1,
		lastHashes:        make(map[string]uint64),
	}
}

// WithDownscale sets the sampling stride passed to HashRegion.
func (c *RegionCondition) WithDownscale(n int) *RegionCondition {
	if n >= 1 {
		c.downscale = n
	}
	return c
}

func (c *RegionCondition) ConsecutiveChecks() int { return c.consecutiveChecks }
func (c *RegionCondition) ExpectChange() bool     { return c.expectChange }

func (c *RegionCondition) Evaluate(_ time.Time, regions []schemas.Region, capture schemas.ScreenCapture) bool {
	anyChanged := false
	for _, r := range regions {
		h := capture.HashRegion(r, c.downscale)
		prev, seen := c.lastHashes[r.ID]
		if seen && prev != h {
			anyChanged = true
		}
		c.lastHashes[r.ID] = h
	}

	switch {
	case !c.initialized:
		c.initialized = true
		c.tracked = anyChanged
		c.count = 1
	case anyChanged == c.tracked:
		c.count++
	default:
		c.tracked = anyChanged
		c.count = 1
	}

	return c.tracked == c.expectChange && c.count >= c.consecutiveChecks
}
