package game

import (
	"math"
	"time"
)

// RateController lowers a room's tick rate while its players report high
// latency and walks it back toward the configured base once they recover.
type RateController struct {
	base       int
	floor      int
	current    int
	samples    *latencyRing
	avg        float64
	lastAdjust time.Time
}

func NewRateController(base int, now time.Time) *RateController {
	if base <= 0 {
		base = DevTickRate
	}
	return &RateController{
		base:       base,
		floor:      min(MinTickRate, base),
		current:    base,
		samples:    newLatencyRing(LatencyWindow),
		lastAdjust: now,
	}
}

// Record adds one latency sample in milliseconds. Negative or absurdly
// large samples come from client clock skew and are dropped.
func (c *RateController) Record(ms float64) {
	if ms < 0 || ms > MaxLatencyMs || math.IsNaN(ms) {
		return
	}
	c.samples.push(ms)
}

// Adjust runs one adaptation pass if RateAdjustGap has elapsed and there
// are samples. It returns the effective rate and whether it changed.
func (c *RateController) Adjust(now time.Time) (int, bool) {
	if now.Sub(c.lastAdjust) <= RateAdjustGap {
		return c.current, false
	}
	avg, ok := c.samples.mean()
	if !ok {
		return c.current, false
	}
	c.avg = avg
	prev := c.current
	switch {
	case avg > HighLatencyMs:
		c.current = max(c.floor, c.current-RateStepDown)
	case avg < LowLatencyMs:
		c.current = min(c.base, c.current+RateStepUp)
	}
	c.samples.reset()
	c.lastAdjust = now
	return c.current, c.current != prev
}

func (c *RateController) Rate() int        { return c.current }
func (c *RateController) Base() int        { return c.base }
func (c *RateController) Average() float64 { return c.avg }
func (c *RateController) Pending() int     { return c.samples.count() }
