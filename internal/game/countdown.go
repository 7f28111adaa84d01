package game

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Countdown is the per-puzzle time limit. Pausing stops it without firing,
// resuming re-arms it with the time that was left.
type Countdown struct {
	afterFunc AfterFunc
	now       func() time.Time

	mu        sync.Mutex
	gen       uint64
	timer     Timer
	fire      func()
	deadline  time.Time
	remaining time.Duration
	paused    bool
}

func NewCountdown(afterFunc AfterFunc, now func() time.Time) *Countdown {
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	if now == nil {
		now = time.Now
	}

	return &Countdown{
		afterFunc: afterFunc,
		now:       now,
	}
}

// Start arms the countdown, replacing any previous one.
func (c *Countdown) Start(d time.Duration, fire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.fire = fire
	c.paused = false
	c.armLocked(d)
}

func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer == nil {
		return
	}

	c.remaining = max(0, c.deadline.Sub(c.now()))
	c.stopLocked()
	c.paused = true
}

func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}

	c.paused = false
	c.armLocked(c.remaining)
}

// Stop cancels the countdown. A stopped countdown cannot be resumed.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.paused = false
	c.fire = nil
}

// Remaining is the time left, zero when the countdown is not running.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.paused:
		return c.remaining
	case c.timer != nil:
		return max(0, c.deadline.Sub(c.now()))
	default:
		return 0
	}
}

func (c *Countdown) armLocked(d time.Duration) {
	c.gen++
	gen := c.gen
	fire := c.fire

	c.deadline = c.now().Add(d)
	c.timer = c.afterFunc(d, func() {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()

		if fire != nil {
			fire()
		}
	})
}

func (c *Countdown) stopLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
