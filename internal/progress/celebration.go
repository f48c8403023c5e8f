package progress

import (
	"sync"
	"time"

	"todola/backend/internal/clock"
)

// Celebration switches on when the stats reach 100% of a non-empty list
// and off again after duration, or as soon as the stats leave 100%.
type Celebration struct {
	clock    clock.Clock
	duration time.Duration
	publish  func(bool)

	mu     sync.Mutex
	seen   bool
	last   Stats
	active bool
	timer  clock.Timer
	gen    uint64
}

func NewCelebration(c clock.Clock, duration time.Duration, publish func(bool)) *Celebration {
	return &Celebration{clock: c, duration: duration, publish: publish}
}

func (c *Celebration) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Update reacts to a change of percentage or total. Repeating the same
// stats is a no-op.
func (c *Celebration) Update(stats Stats) {
	c.mu.Lock()
	if c.seen && c.last.Percentage == stats.Percentage && c.last.Total == stats.Total {
		c.mu.Unlock()
		return
	}
	c.seen = true
	c.last = stats
	c.cancelLocked()

	if !stats.Complete() {
		wasActive := c.active
		c.active = false
		c.mu.Unlock()
		if wasActive {
			c.publish(false)
		}
		return
	}

	c.active = true
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.duration, func() { c.expire(gen) })
	c.mu.Unlock()
	c.publish(true)
}

func (c *Celebration) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.timer = nil
	c.mu.Unlock()
	c.publish(false)
}

func (c *Celebration) cancelLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Stop cancels the pending switch-off and forgets the last stats.
func (c *Celebration) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.active = false
	c.seen = false
}
