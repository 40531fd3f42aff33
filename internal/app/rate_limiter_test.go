package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, 5*time.Second)
	rl.now = func() time.Time { return now }

	req.True(rl.Allow("a"))
	now = now.Add(time.Second)
	req.True(rl.Allow("a"))
	req.True(rl.Allow("a"))
	req.False(rl.Allow("a"))

	// First attempt leaves the window.
	now = now.Add(4*time.Second + time.Millisecond)
	req.True(rl.Allow("a"))
	req.False(rl.Allow("a"))

	now = now.Add(5 * time.Second)
	req.True(rl.Allow("a"))
}

func TestRateLimiter_DisabledOrNil(t *testing.T) {
	req := require.New(t)
	var nilRL *RateLimiter
	req.True(nilRL.Allow("a"))
	nilRL.Forget("a")

	off := NewRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		req.True(off.Allow("a"))
	}
}

func TestRateLimiter_EvictsIdleSenders(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, 5*time.Second)
	rl.now = func() time.Time { return now }

	// Given many one-shot senders, as cookieless HTTP clients are
	for i := 0; i < 1000; i++ {
		req.True(rl.Allow(fmt.Sprintf("token-%d", i)))
	}
	req.Equal(1000, rl.Len())

	// When the window passes and anyone sends again
	now = now.Add(5*time.Second + time.Millisecond)
	req.True(rl.Allow("fresh"))

	// Then only the active sender is kept
	req.Equal(1, rl.Len())
}

func TestRateLimiter_SweepKeepsActiveWindows(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 5*time.Second)
	rl.now = func() time.Time { return now }

	req.True(rl.Allow("a"))
	now = now.Add(4 * time.Second)
	req.True(rl.Allow("busy"))
	req.True(rl.Allow("busy"))

	// The sweep at 6s drops "a" but "busy" is still limited.
	now = now.Add(2 * time.Second)
	req.False(rl.Allow("busy"))
	req.Equal(1, rl.Len())
}
