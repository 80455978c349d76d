package composer

import (
	"sync"
	"time"
)

// DefaultCooldownWindow is how long external completion calls are skipped
// after a rate-limit response.
const DefaultCooldownWindow = 60 * time.Second

// Cooldown remembers the last time a completion provider answered with a
// rate limit. While the window is active the composer goes straight to the
// static tier instead of retrying the network. One instance is shared by
// the whole process; a missed window under concurrency costs one extra API
// call and nothing else, so a plain mutex is enough.
type Cooldown struct {
	mu     sync.Mutex
	last   time.Time
	window time.Duration
	now    func() time.Time
}

// NewCooldown creates a cooldown with the given window. A non-positive
// window falls back to DefaultCooldownWindow.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	return &Cooldown{window: window, now: time.Now}
}

// Trip records a rate-limit response at the current time.
func (c *Cooldown) Trip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.now()
}

// Active reports whether a rate limit was recorded within the window.
func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.last.IsZero() && c.now().Sub(c.last) < c.window
}
