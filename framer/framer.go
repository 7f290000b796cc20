package framer

import (
	"log/slog"
	"sync"
	"time"
)

// Config configures a Framer. Zero values select the defaults.
type Config struct {
	// Capacity is the largest frame accepted, in bytes.
	Capacity int
	// IdleTimeout is the silence that ends a frame.
	IdleTimeout time.Duration
	// Clock schedules the idle timer; SystemClock when nil.
	Clock  Clock
	Logger *slog.Logger
}

// Framer turns a stream of single bytes into frames. A frame ends when no
// byte has arrived for the idle timeout. There is no delimiter: a sender that
// stalls longer than the timeout in the middle of a command produces two
// frames.
//
// Feed may be called from a reader goroutine while the idle timer fires on
// another; completed frames are queued and picked up with PollComplete,
// typically after a signal on Ready.
type Framer struct {
	mu       sync.Mutex
	buf      *Buffer
	timer    *IdleTimer
	complete [][]byte

	// ready holds a token while completed frames are waiting.
	ready chan struct{}

	overflows uint64
	logger    *slog.Logger
}

// New creates a Framer with an empty buffer and a stopped idle timer.
func New(cfg Config) *Framer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := &Framer{
		buf:    NewBuffer(cfg.Capacity),
		ready:  make(chan struct{}, 1),
		logger: logger,
	}
	f.timer = NewIdleTimer(cfg.Clock, cfg.IdleTimeout, f.expired)
	return f
}

// Feed appends one received byte to the frame in progress and restarts the
// idle timer.
//
// If the buffer is already full the whole frame is discarded, the timer is
// stopped and ErrFrameOverflow is returned. The triggering byte is dropped
// too, so the next frame holds only bytes fed after the overflow.
func (f *Framer) Feed(b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.buf.Append(b) {
		f.overflows++
		f.logger.Warn("Frame discarded", "error", ErrFrameOverflow, "capacity", f.buf.Cap())
		f.buf.Reset()
		f.timer.Stop()
		return ErrFrameOverflow
	}
	f.timer.Restart()
	return nil
}

// OnIdleTimeout completes the frame in progress as if the idle timer had
// expired. An empty buffer produces no frame.
func (f *Framer) OnIdleTimeout() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.timer.Stop()
	f.completeLocked()
}

// expired is the idle timer callback.
func (f *Framer) expired(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.timer.Fired(gen) {
		// A byte arrived after this expiry was scheduled.
		return
	}
	f.completeLocked()
}

func (f *Framer) completeLocked() {
	if f.buf.Len() == 0 {
		return
	}
	frame := make([]byte, f.buf.Len())
	copy(frame, f.buf.Bytes())
	f.buf.Reset()
	f.complete = append(f.complete, frame)

	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// PollComplete returns the oldest completed frame, if any. It never blocks.
func (f *Framer) PollComplete() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.complete) == 0 {
		return nil, false
	}
	frame := f.complete[0]
	f.complete[0] = nil
	f.complete = f.complete[1:]
	if len(f.complete) > 0 {
		select {
		case f.ready <- struct{}{}:
		default:
		}
	}
	return frame, true
}

// Ready receives a value when completed frames are waiting. After a receive,
// drain with PollComplete until it reports false.
func (f *Framer) Ready() <-chan struct{} {
	return f.ready
}

// Pending returns the number of bytes in the frame in progress.
func (f *Framer) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Len()
}

// Overflows returns how many frames were discarded for exceeding capacity.
func (f *Framer) Overflows() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overflows
}
