package framer

import "time"

// DefaultIdleTimeout is the quiet period that ends a console frame.
const DefaultIdleTimeout = 500 * time.Millisecond

// Timer is a pending single-shot callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports false when the
	// callback already fired or was stopped.
	Stop() bool
}

// Clock schedules single-shot callbacks. The callback may run on any
// goroutine.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the Clock backed by the runtime timers.
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// IdleTimer is a restartable single-shot timer. At most one expiry is
// pending at a time: Restart cancels the previous one, and an expiry that
// raced with a Restart or Stop is recognised as stale through its
// generation number.
//
// IdleTimer does no locking of its own; the owner serialises Restart, Stop
// and Fired.
type IdleTimer struct {
	clock    Clock
	interval time.Duration
	expire   func(gen uint64)

	pending Timer
	gen     uint64
}

// NewIdleTimer returns a stopped timer. On expiry, expire is invoked with the
// generation the expiry belongs to; the owner confirms it with Fired.
func NewIdleTimer(clock Clock, interval time.Duration, expire func(gen uint64)) *IdleTimer {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultIdleTimeout
	}
	return &IdleTimer{clock: clock, interval: interval, expire: expire}
}

// Restart (re)arms the timer for a full interval from now.
func (t *IdleTimer) Restart() {
	if t.pending != nil {
		t.pending.Stop()
	}
	t.gen++
	gen := t.gen
	t.pending = t.clock.AfterFunc(t.interval, func() { t.expire(gen) })
}

// Stop cancels any pending expiry.
func (t *IdleTimer) Stop() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.gen++
}

// Fired reports whether gen is the current generation and, if so, marks
// the timer as no longer running.
func (t *IdleTimer) Fired(gen uint64) bool {
	if gen != t.gen || t.pending == nil {
		return false
	}
	t.pending = nil
	return true
}

func (t *IdleTimer) Running() bool { return t.pending != nil }

func (t *IdleTimer) Interval() time.Duration { return t.interval }
