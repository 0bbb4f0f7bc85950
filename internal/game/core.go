package game

import (
	"math"
	"time"
)

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Box is an axis-aligned rectangle with its origin at the top-left.
type Box struct{ X, Y, W, H float64 }

func (a Box) Overlaps(b Box) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X && a.Y < b.Y+b.H && a.Y+a.H > b.Y
}

// FrameScale is how many reference frames elapse per tick at rate hz.
func FrameScale(hz int) float64 {
	if hz <= 0 {
		return 1
	}
	return ReferenceHz / float64(hz)
}

// TicksFor converts a duration in seconds to a whole number of ticks at
// rate hz, never less than one.
func TicksFor(seconds float64, hz int) int {
	n := int(math.Round(seconds * float64(hz)))
	if n < 1 {
		return 1
	}
	return n
}

func IntervalFor(hz int) time.Duration {
	if hz <= 0 {
		hz = DevTickRate
	}
	return time.Second / time.Duration(hz)
}

// latencyRing keeps the most recent samples; the oldest is overwritten
// once the ring is full.
type latencyRing struct {
	buf  []float64
	head int
	size int
}

func newLatencyRing(n int) *latencyRing {
	return &latencyRing{buf: make([]float64, n)}
}

func (r *latencyRing) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *latencyRing) mean() (float64, bool) {
	if r.size == 0 {
		return 0, false
	}
	var sum float64
	for i := 0; i < r.size; i++ {
		sum += r.buf[(r.head-1-i+len(r.buf))%len(r.buf)]
	}
	return sum / float64(r.size), true
}

func (r *latencyRing) reset() {
	r.head = 0
	r.size = 0
}

func (r *latencyRing) count() int { return r.size }
