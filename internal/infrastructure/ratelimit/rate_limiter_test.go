package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustionAndRefill(t *testing.T) {
	bucket := NewTokenBucket(2, 1, 20*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.True(t, allowed)

	allowed, wait := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))

	time.Sleep(25 * time.Millisecond)

	allowed, _ = bucket.Allow()
	assert.True(t, allowed, "bucket should refill after the interval")
}

func TestRateLimiterIsolatesUsersAndActions(t *testing.T) {
	limiter := NewRateLimiter()

	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow("admin-1", "broadcast")
		assert.True(t, allowed)
	}

	allowed, _ := limiter.Allow("admin-1", "broadcast")
	assert.False(t, allowed, "sixth broadcast within the hour is rejected")

	// Same user, different action: separate bucket.
	allowed, _ = limiter.Allow("admin-1", "send_message")
	assert.True(t, allowed)

	// Different user, same action: separate bucket.
	allowed, _ = limiter.Allow("trainer-1", "broadcast")
	assert.True(t, allowed)
}

func TestRateLimiterDefaultBucket(t *testing.T) {
	limiter := NewRateLimiter()

	for i := 0; i < 20; i++ {
		allowed, _ := limiter.Allow("admin-1", "unlisted")
		assert.True(t, allowed)
	}

	allowed, _ := limiter.Allow("admin-1", "unlisted")
	assert.False(t, allowed)
}
