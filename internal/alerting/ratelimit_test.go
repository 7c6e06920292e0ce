package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Boundary(t *testing.T) {
	clock := newManualClock()
	limiter := NewRateLimiter(clock.Now)

	for i := 1; i <= 10; i++ {
		require.True(t, limiter.Allow("console", 10, 5*time.Minute), "send %d", i)
		clock.Advance(time.Second)
	}
	assert.Equal(t, 10, limiter.Count("console"))

	// 11th inside the window is denied and not counted
	assert.False(t, limiter.Allow("console", 10, 5*time.Minute))
	assert.Equal(t, 10, limiter.Count("console"))

	// Window elapses, counter restarts at one
	clock.Advance(5 * time.Minute)
	assert.True(t, limiter.Allow("console", 10, 5*time.Minute))
	assert.Equal(t, 1, limiter.Count("console"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newManualClock()
	limiter := NewRateLimiter(clock.Now)

	require.True(t, limiter.Allow("a", 1, time.Minute))
	assert.False(t, limiter.Allow("a", 1, time.Minute))
	assert.True(t, limiter.Allow("b", 1, time.Minute))
}

func TestRateLimiter_Prune(t *testing.T) {
	clock := newManualClock()
	limiter := NewRateLimiter(clock.Now)

	limiter.Allow("short", 5, time.Minute)
	limiter.Allow("long", 5, time.Hour)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, limiter.Prune())
	assert.Equal(t, 0, limiter.Count("short"))
	assert.Equal(t, 1, limiter.Count("long"))

	limiter.Reset("long")
	assert.Equal(t, 0, limiter.Count("long"))
}
