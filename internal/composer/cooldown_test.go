package composer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldown_ActiveWithinWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(60 * time.Second)
	c.now = func() time.Time { return now }

	assert.False(t, c.Active(), "never tripped")

	c.Trip()
	assert.True(t, c.Active())

	now = now.Add(59 * time.Second)
	assert.True(t, c.Active())

	now = now.Add(2 * time.Second)
	assert.False(t, c.Active(), "window elapsed")
}

func TestCooldown_RetripResetsWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(60 * time.Second)
	c.now = func() time.Time { return now }

	c.Trip()
	now = now.Add(50 * time.Second)
	c.Trip()
	now = now.Add(50 * time.Second)
	assert.True(t, c.Active(), "second trip restarted the window")
}

func TestCooldown_DefaultWindow(t *testing.T) {
	c := NewCooldown(0)
	assert.Equal(t, DefaultCooldownWindow, c.window)
}
