package game_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/bananaquiz/internal/game"
)

func TestCountdown(t *testing.T) {
	clock := newFakeClock()
	c := game.NewCountdown(clock.AfterFunc, clock.Now)

	fired := 0
	c.Start(60*time.Second, func() { fired++ })
	assert.Equal(t, 60*time.Second, c.Remaining())

	clock.Advance(20 * time.Second)
	c.Pause()
	assert.Equal(t, 40*time.Second, c.Remaining())

	clock.FireAll()
	assert.Zero(t, fired, "a paused countdown must not fire")

	clock.Advance(time.Hour)
	c.Resume()
	assert.Equal(t, 40*time.Second, clock.LastDuration(), "resume re-arms with the time left")

	clock.FireAll()
	assert.Equal(t, 1, fired)
	assert.Zero(t, c.Remaining())

	c.Start(time.Second, func() { fired++ })
	c.Stop()
	c.Resume()
	clock.FireAll()
	assert.Equal(t, 1, fired, "a stopped countdown never fires")
}

func TestCountdown_StartReplacesPrevious(t *testing.T) {
	clock := newFakeClock()
	c := game.NewCountdown(clock.AfterFunc, clock.Now)

	var first, second int
	c.Start(time.Second, func() { first++ })
	c.Start(time.Second, func() { second++ })
	clock.FireAll()

	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) game.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) LastDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.timers) == 0 {
		return 0
	}
	return c.timers[len(c.timers)-1].d
}

// Pending counts the timers that were neither stopped nor fired.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// FireAll runs every timer that was armed so far, stopped ones included, the way a timer
// racing with Stop would. Callers must cope with stale callbacks.
func (c *fakeClock) FireAll() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()

	for _, t := range timers {
		if t.fired {
			continue
		}
		t.fired = true
		t.f()
	}
}
