package core

import "time"

// Clock measures wall time since Start. Elapsed only moves on Update or Tick.
type Clock struct {
	startTime time.Time
	elapsed   time.Duration
	lastTick  time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Update refreshes Elapsed. Has no effect on a stopped clock.
func (c *Clock) Update() {
	if !c.startTime.IsZero() {
		c.elapsed = time.Since(c.startTime)
	}
}

// Tick updates the clock and returns the time since the previous tick, or
// since Start for the first one.
func (c *Clock) Tick() time.Duration {
	c.Update()
	delta := c.elapsed - c.lastTick
	c.lastTick = c.elapsed
	return delta
}

// Start resets elapsed time.
func (c *Clock) Start() {
	c.startTime = time.Now()
	c.elapsed = 0
	c.lastTick = 0
}

// Stop keeps the elapsed time.
func (c *Clock) Stop() {
	c.startTime = time.Time{}
}

func (c *Clock) Running() bool {
	return !c.startTime.IsZero()
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}
