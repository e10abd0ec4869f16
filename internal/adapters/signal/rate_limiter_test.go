package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRoomRateLimiter(2, 5*time.Second)
	now := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "sessions are limited independently")

	now = now.Add(5 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterForgetAndDisabled(t *testing.T) {
	rl := NewRoomRateLimiter(1, time.Minute)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	rl.Forget("a")
	assert.True(t, rl.Allow("a"))

	off := NewRoomRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, off.Allow("a"))
	}

	var nilLimiter *RoomRateLimiter
	assert.True(t, nilLimiter.Allow("a"))
	nilLimiter.Forget("a")
}

func TestEventLabel(t *testing.T) {
	assert.Equal(t, "pollVote", eventLabel("pollVote"))
	assert.Equal(t, "unknown", eventLabel("drop table"))
	assert.Equal(t, "unknown", eventLabel(""))
}
