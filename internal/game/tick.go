package game

import (
	"sync"
	"time"
)

// tickHandle is one scheduled run of a room's tick loop. A room holds at
// most one live handle; a loop whose handle is no longer the room's
// current one exits without touching state.
type tickHandle struct {
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newTickHandle() *tickHandle {
	return &tickHandle{quit: make(chan struct{}), done: make(chan struct{})}
}

func (h *tickHandle) cancel() {
	h.once.Do(func() { close(h.quit) })
}

func (r *Room) startTickLocked() {
	r.stopTickLocked()
	h := newTickHandle()
	r.tick = h
	if r.manual {
		close(h.done)
		return
	}
	go r.runTicks(h, IntervalFor(r.rate.Rate()))
}

func (r *Room) stopTickLocked() {
	if r.tick == nil {
		return
	}
	r.tick.cancel()
	r.tick = nil
}

func (r *Room) runTicks(h *tickHandle, interval time.Duration) {
	defer close(h.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-h.quit:
			return
		case <-t.C:
			next, ok := r.stepHandle(h)
			if !ok {
				return
			}
			if next != interval {
				interval = next
				t.Reset(interval)
			}
		}
	}
}

func (r *Room) stepHandle(h *tickHandle) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tick != h {
		return 0, false
	}
	return r.stepLocked(r.now()), true
}

// Step runs one simulation tick immediately. Rooms created with
// ManualTick rely on it; on other rooms it adds an extra tick.
func (r *Room) Step() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stepLocked(r.now())
}

// stepLocked advances the match by one tick and returns the interval the
// next tick should use.
func (r *Room) stepLocked(now time.Time) time.Duration {
	if r.state != Running || len(r.players) != RoomMaxPlayers {
		return IntervalFor(r.rate.Rate())
	}
	if rate, changed := r.rate.Adjust(now); changed {
		r.retimeLocked(rate)
		r.log.Info("tick rate adjusted", "tickRate", rate, "avgLatencyMs", r.rate.Average())
	}
	k := FrameScale(r.rate.Rate())
	for _, p := range r.players {
		p.integrate(k)
	}
	r.advanceBulletsLocked(k)
	for _, p := range r.players {
		p.decayTimers()
	}
	r.lastTick = now
	r.broadcastLocked(r.snapshotLocked(now), 0)
	return IntervalFor(r.rate.Rate())
}

// Close terminates the room and waits for its tick loop to exit. Used on
// shutdown; the room cannot be reused.
func (r *Room) Close() {
	r.mu.Lock()
	h := r.tick
	r.stopTickLocked()
	r.state = Terminated
	r.mu.Unlock()
	if h != nil {
		<-h.done
	}
}
