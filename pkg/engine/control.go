package engine

import "sync"

// control carries cooperative cancel/pause signals into a running execution
// loop. Cancellation and pause take effect at action boundaries only: an
// in-flight action attempt is never interrupted.
type control struct {
	mu        sync.Mutex
	cancelled bool
	paused    bool
	resumeCh  chan struct{}
}

func newControl() *control {
	return &control{}
}

// cancel marks the execution for cancellation and releases a paused loop so
// it can observe the flag.
func (c *control) cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	if c.paused {
		c.paused = false
		close(c.resumeCh)
	}
}

func (c *control) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.cancelled {
		return
	}
	c.paused = true
	c.resumeCh = make(chan struct{})
}

func (c *control) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	close(c.resumeCh)
}

func (c *control) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// pauseState returns whether the loop should pause and the channel that
// resume/cancel will close.
func (c *control) pauseState() (bool, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused, c.resumeCh
}
